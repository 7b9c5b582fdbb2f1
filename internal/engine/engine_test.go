package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/notify"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/position"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/quote"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvents() *notify.Events {
	return notify.NewEvents(notify.NewNotifier(nil, nil, testLogger()), "BTC")
}

// fakeVenue is a scriptable venue adapter for engine tests.
type fakeVenue struct {
	name     string
	quote    domain.Quote
	quoteErr error

	placeErrs  []error // consumed one per PlaceOrder call, nil past the end
	placed     []domain.OrderRequest
	placeCalls int

	cancelErr   error
	cancelCalls int

	balances   []decimal.Decimal
	balanceErr []error
	balanceIdx int

	apiPosition    decimal.Decimal
	closed         []decimal.Decimal
	cancelAllCalls int
}

func (f *fakeVenue) Name() string { return f.name }

func (f *fakeVenue) GetQuote(context.Context) (domain.Quote, error) {
	return f.quote, f.quoteErr
}

func (f *fakeVenue) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	f.placed = append(f.placed, req)
	f.placeCalls++
	if n := f.placeCalls - 1; n < len(f.placeErrs) && f.placeErrs[n] != nil {
		return domain.OrderAck{}, f.placeErrs[n]
	}
	return domain.OrderAck{OrderID: "order-1", Price: req.Price, At: time.Now()}, nil
}

func (f *fakeVenue) CancelOrder(context.Context, string) error {
	f.cancelCalls++
	return f.cancelErr
}

func (f *fakeVenue) CancelAllOrders(context.Context) error {
	f.cancelAllCalls++
	return nil
}

func (f *fakeVenue) GetBalance(context.Context) (decimal.Decimal, error) {
	i := f.balanceIdx
	f.balanceIdx++
	var err error
	if i < len(f.balanceErr) {
		err = f.balanceErr[i]
	}
	if i >= len(f.balances) {
		if len(f.balances) == 0 {
			return decimal.Zero, err
		}
		return f.balances[len(f.balances)-1], err
	}
	return f.balances[i], err
}

func (f *fakeVenue) GetPosition(context.Context) (decimal.Decimal, error) {
	return f.apiPosition, nil
}

func (f *fakeVenue) ClosePosition(_ context.Context, qty decimal.Decimal) error {
	f.closed = append(f.closed, qty)
	return nil
}

type omFixture struct {
	maker, taker *fakeVenue
	takerQuotes  *quote.Cache
	positions    *position.Tracker
	risk         *domain.RiskState
	om           *OrderManager
}

func newOMFixture(t *testing.T) *omFixture {
	t.Helper()
	f := &omFixture{
		maker: &fakeVenue{name: domain.VenueO1, quote: domain.Quote{
			Bid: d("99990"), Ask: d("100000"), At: time.Now(),
		}},
		taker:       &fakeVenue{name: domain.VenueLighter},
		takerQuotes: quote.NewCache(domain.VenueLighter, time.Minute),
		positions:   position.NewTracker(d("1"), d("0.001")),
		risk:        &domain.RiskState{},
	}
	f.takerQuotes.Update(domain.Quote{Bid: d("100050"), Ask: d("100060"), At: time.Now()})
	f.om = NewOrderManager(f.maker, f.taker, f.takerQuotes, f.positions, f.risk, testEvents(),
		OrderManagerConfig{
			OrderSize:      d("0.001"),
			TickSize:       d("10"),
			FillTimeout:    5 * time.Second,
			HedgeRetries:   3,
			SlippageBuffer: d("0.002"),
		}, testLogger())
	f.om.sleep = func(context.Context, time.Duration) {}
	return f
}

func TestExecuteNoFill(t *testing.T) {
	f := newOMFixture(t)
	// cancelErr nil: the probe cancels cleanly, meaning no fill.

	rec, err := f.om.Execute(context.Background(), domain.SignalLong, f.maker.quote)
	if err != nil || rec != nil {
		t.Fatalf("Execute = (%v, %v), want (nil, nil)", rec, err)
	}
	if f.maker.cancelCalls != 1 {
		t.Fatalf("cancel calls = %d, want 1", f.maker.cancelCalls)
	}
	if f.taker.placeCalls != 0 {
		t.Fatalf("taker called %d times on unfilled maker, want 0", f.taker.placeCalls)
	}
	if snap := f.positions.Snapshot(); !snap.O1.IsZero() || !snap.Lighter.IsZero() {
		t.Fatalf("positions changed on unfilled leg: %+v", snap)
	}
}

func TestExecuteFillAndHedge(t *testing.T) {
	f := newOMFixture(t)
	f.maker.cancelErr = domain.ErrOrderNotFound

	rec, err := f.om.Execute(context.Background(), domain.SignalLong, f.maker.quote)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec == nil {
		t.Fatal("Execute returned nil record on completed round trip")
	}

	// Long: maker buy pegged one tick under the ask.
	if want := d("99990"); !f.maker.placed[0].Price.Equal(want) {
		t.Fatalf("maker price = %s, want %s", f.maker.placed[0].Price, want)
	}
	if f.maker.placed[0].Kind != domain.OrderKindMaker {
		t.Fatalf("maker kind = %s", f.maker.placed[0].Kind)
	}
	if f.taker.placed[0].Side != domain.OrderSideSell {
		t.Fatalf("taker side = %s, want sell", f.taker.placed[0].Side)
	}
	if f.taker.placed[0].Kind != domain.OrderKindTaker {
		t.Fatalf("taker kind = %s", f.taker.placed[0].Kind)
	}
	// Hedge limit: bid * (1 - 0.002).
	if want := d("100050").Mul(d("0.998")); !f.taker.placed[0].Price.Equal(want) {
		t.Fatalf("hedge limit = %s, want %s", f.taker.placed[0].Price, want)
	}

	if !rec.TakerPrice.Equal(d("100050")) {
		t.Fatalf("taker price = %s, want touch 100050", rec.TakerPrice)
	}
	if want := d("60"); !rec.SpreadCaptured.Equal(want) {
		t.Fatalf("spread captured = %s, want %s", rec.SpreadCaptured, want)
	}

	snap := f.positions.Snapshot()
	if !snap.Net.IsZero() {
		t.Fatalf("net = %s after hedged trade, want 0", snap.Net)
	}
	if snap.TotalLong != 1 {
		t.Fatalf("total_long = %d, want 1", snap.TotalLong)
	}
	if f.risk.Paused() {
		t.Fatal("risk paused after clean trade")
	}
}

func TestExecuteShortSides(t *testing.T) {
	f := newOMFixture(t)
	f.maker.cancelErr = domain.ErrOrderNotFound

	rec, err := f.om.Execute(context.Background(), domain.SignalShort, f.maker.quote)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Short: maker sell pegged one tick above the bid.
	if want := d("100000"); !f.maker.placed[0].Price.Equal(want) {
		t.Fatalf("maker price = %s, want %s", f.maker.placed[0].Price, want)
	}
	if f.maker.placed[0].Side != domain.OrderSideSell {
		t.Fatalf("maker side = %s, want sell", f.maker.placed[0].Side)
	}
	if f.taker.placed[0].Side != domain.OrderSideBuy {
		t.Fatalf("taker side = %s, want buy", f.taker.placed[0].Side)
	}
	// Buy hedge lifts the ask with the buffer added.
	if want := d("100060").Mul(d("1.002")); !f.taker.placed[0].Price.Equal(want) {
		t.Fatalf("hedge limit = %s, want %s", f.taker.placed[0].Price, want)
	}
	if want := d("100000").Sub(d("100060")); !rec.SpreadCaptured.Equal(want) {
		t.Fatalf("spread captured = %s, want %s", rec.SpreadCaptured, want)
	}
}

func TestExecuteMakerRejected(t *testing.T) {
	f := newOMFixture(t)
	f.maker.placeErrs = []error{domain.ErrMakerRejected}

	rec, err := f.om.Execute(context.Background(), domain.SignalLong, f.maker.quote)
	if !errors.Is(err, domain.ErrMakerRejected) {
		t.Fatalf("err = %v, want ErrMakerRejected", err)
	}
	if rec != nil {
		t.Fatal("record returned on rejected maker")
	}
	if f.maker.cancelCalls != 0 {
		t.Fatal("probe sent for an order that was never placed")
	}
	if f.risk.Paused() {
		t.Fatal("risk paused on recoverable rejection")
	}
}

func TestExecuteAmbiguousCancelHalts(t *testing.T) {
	f := newOMFixture(t)
	f.maker.cancelErr = errors.New("gateway timeout")

	_, err := f.om.Execute(context.Background(), domain.SignalLong, f.maker.quote)
	if !errors.Is(err, domain.ErrCancelAmbiguous) {
		t.Fatalf("err = %v, want ErrCancelAmbiguous", err)
	}
	if f.taker.placeCalls != 0 {
		t.Fatal("hedge placed despite unknown maker outcome")
	}
	if !f.risk.Paused() || !f.risk.Critical() {
		t.Fatal("risk not paused+critical after ambiguous probe")
	}
	if snap := f.positions.Snapshot(); !snap.O1.IsZero() {
		t.Fatalf("position changed on unknown outcome: %s", snap.O1)
	}
}

func TestExecuteHedgeExhaustion(t *testing.T) {
	f := newOMFixture(t)
	f.maker.cancelErr = domain.ErrOrderNotFound
	f.taker.placeErrs = []error{
		errors.New("rejected"), errors.New("rejected"), errors.New("rejected"),
	}

	_, err := f.om.Execute(context.Background(), domain.SignalLong, f.maker.quote)
	if !errors.Is(err, domain.ErrHedgeFailed) {
		t.Fatalf("err = %v, want ErrHedgeFailed", err)
	}
	if f.taker.placeCalls != 3 {
		t.Fatalf("hedge attempts = %d, want 3", f.taker.placeCalls)
	}

	// Buffer widens per attempt: 0.2%, 0.4%, 0.6% under the bid.
	for i, mult := range []string{"0.998", "0.996", "0.994"} {
		want := d("100050").Mul(d(mult))
		if !f.taker.placed[i].Price.Equal(want) {
			t.Fatalf("attempt %d limit = %s, want %s", i+1, f.taker.placed[i].Price, want)
		}
	}

	// The one-sided maker fill is recorded, nothing on the taker venue.
	snap := f.positions.Snapshot()
	if !snap.O1.Equal(d("0.001")) || !snap.Lighter.IsZero() {
		t.Fatalf("positions = %s/%s, want 0.001/0", snap.O1, snap.Lighter)
	}
	if !f.risk.Paused() || !f.risk.Critical() {
		t.Fatal("risk not paused+critical after hedge exhaustion")
	}
}

func TestExecuteHedgeRetrySucceeds(t *testing.T) {
	f := newOMFixture(t)
	f.maker.cancelErr = domain.ErrOrderNotFound
	f.taker.placeErrs = []error{errors.New("rejected"), nil}

	rec, err := f.om.Execute(context.Background(), domain.SignalLong, f.maker.quote)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec == nil {
		t.Fatal("no record after successful retry")
	}
	if f.taker.placeCalls != 2 {
		t.Fatalf("hedge attempts = %d, want 2", f.taker.placeCalls)
	}
	if f.risk.Paused() {
		t.Fatal("risk paused after recovered hedge")
	}
}

func TestExecuteRejectsConcurrentLeg(t *testing.T) {
	f := newOMFixture(t)
	f.om.busy.Store(true)

	_, err := f.om.Execute(context.Background(), domain.SignalLong, f.maker.quote)
	if !errors.Is(err, domain.ErrLegInFlight) {
		t.Fatalf("err = %v, want ErrLegInFlight", err)
	}
}

func newBalanceMonitor(v *fakeVenue, risk *domain.RiskState, stop func(string)) *BalanceMonitor {
	m := NewBalanceMonitor([]domain.Venue{v}, d("10"), time.Second, risk, testEvents(), stop, testLogger())
	m.sleep = func(context.Context, time.Duration) {}
	return m
}

func TestBalanceMonitorQueryErrorSkips(t *testing.T) {
	v := &fakeVenue{name: domain.VenueO1, balanceErr: []error{errors.New("502 bad gateway")}}
	risk := &domain.RiskState{}
	stopped := false
	m := newBalanceMonitor(v, risk, func(string) { stopped = true })

	if m.check(context.Background()) {
		t.Fatal("check triggered shutdown on query error")
	}
	if stopped || risk.Paused() {
		t.Fatal("query error must never pause or stop the engine")
	}
}

func TestBalanceMonitorRecoveredBlip(t *testing.T) {
	v := &fakeVenue{name: domain.VenueO1, balances: []decimal.Decimal{d("5"), d("50")}}
	risk := &domain.RiskState{}
	m := newBalanceMonitor(v, risk, func(string) { t.Fatal("stop requested on recovered balance") })

	if m.check(context.Background()) {
		t.Fatal("check triggered shutdown on recovered balance")
	}
	if risk.Paused() {
		t.Fatal("risk paused on recovered balance")
	}
}

func TestBalanceMonitorConfirmedLowStops(t *testing.T) {
	v := &fakeVenue{name: domain.VenueO1, balances: []decimal.Decimal{d("5"), d("4")}}
	risk := &domain.RiskState{}
	var reason string
	m := newBalanceMonitor(v, risk, func(r string) { reason = r })

	if !m.check(context.Background()) {
		t.Fatal("check did not trigger shutdown on confirmed low balance")
	}
	if !risk.Paused() {
		t.Fatal("risk not paused on confirmed low balance")
	}
	if risk.Critical() {
		t.Fatal("low balance is a graceful stop, not a critical halt")
	}
	if reason == "" {
		t.Fatal("stop not requested")
	}
}
