package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after applying any flag overrides.
//
// A missing file is not an error when path is empty: defaults plus
// environment are used, matching how the engine runs in containers.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites the
// corresponding Config fields when set. This lets operators inject secrets at
// deploy time without touching the TOML file. The unprefixed O1_PRIVATE_KEY
// and LIGHTER_* names are kept for compatibility with existing deployments.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.O1.PrivateKey, "O1_PRIVATE_KEY")
	setStr(&cfg.O1.APIURL, "ARBBOT_O1_API_URL")

	setStr(&cfg.Lighter.APIKey, "LIGHTER_API_KEY")
	setStr(&cfg.Lighter.APISecret, "LIGHTER_API_SECRET")
	setInt(&cfg.Lighter.AccountIndex, "LIGHTER_ACCOUNT_INDEX")
	setStr(&cfg.Lighter.WSURL, "ARBBOT_LIGHTER_WS_URL")
	setStr(&cfg.Lighter.APIURL, "ARBBOT_LIGHTER_API_URL")

	setStr(&cfg.Notify.TelegramToken, "TG_BOT_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TG_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "ARBBOT_DISCORD_WEBHOOK")

	setStr(&cfg.Telemetry.Addr, "ARBBOT_REDIS_ADDR")
	setStr(&cfg.Telemetry.Password, "ARBBOT_REDIS_PASSWORD")
	setInt(&cfg.Telemetry.DB, "ARBBOT_REDIS_DB")

	setStr(&cfg.LogLevel, "ARBBOT_LOG_LEVEL")
	setDecimal(&cfg.Strategy.OrderSize, "ARBBOT_ORDER_SIZE")
	setDecimal(&cfg.Strategy.MaxPosition, "ARBBOT_MAX_POSITION")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}
