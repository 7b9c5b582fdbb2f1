package domain

import (
	"sync"
	"sync/atomic"
)

// RiskState gates new order placement. The paused flag is written by the
// order manager (hedge exhaustion, ambiguous cancel) and the balance monitor,
// and read at the top of every loop cycle; eventual visibility within one
// cycle is sufficient, so a plain atomic bool is used with no CAS loop.
// Pausing never cancels existing orders or positions, and the flag is cleared
// only by restarting the process once the cause is resolved.
type RiskState struct {
	paused   atomic.Bool
	critical atomic.Bool

	mu     sync.Mutex
	reason string
}

// Pause halts new order placement, recording the first reason given.
func (r *RiskState) Pause(reason string) {
	r.mu.Lock()
	if r.reason == "" {
		r.reason = reason
	}
	r.mu.Unlock()
	r.paused.Store(true)
}

// Paused reports whether new order placement is halted.
func (r *RiskState) Paused() bool {
	return r.paused.Load()
}

// Reason returns the first recorded pause reason, or "" if never paused.
func (r *RiskState) Reason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// MarkCritical records that an unrecoverable condition occurred (one-sided
// position or unknown order state). The process stays alive for operator
// inspection but must exit non-zero when it eventually stops.
func (r *RiskState) MarkCritical() {
	r.critical.Store(true)
}

// Critical reports whether a critical condition was recorded.
func (r *RiskState) Critical() bool {
	return r.critical.Load()
}
