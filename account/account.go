// Package account owns the authoritative local view of the trading
// account: the active trade, the order audit map, balance and
// performance counters. It is a single-goroutine state machine driven
// by decoded exchange events; the engine's event loop is its only
// caller, so no locking is needed.
package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/culda/skalpit/market"
	"github.com/culda/skalpit/pkg/id"
	"github.com/culda/skalpit/risk"
)

// State is the trade-cycle state. The machine is re-entrant: every
// close returns it to Flat, ready for the next Open.
type State int

const (
	Flat State = iota
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Flat:
		return "flat"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

var (
	// ErrTradeActive rejects Open while a trade is already active.
	ErrTradeActive = errors.New("account: a trade is already active")

	// ErrMissingOrderID rejects order and execution events without an id.
	ErrMissingOrderID = errors.New("account: event missing order id")
)

// DefaultGraceWindow is how long after an open a zero-size position
// report is presumed to be a stale echo of the pre-open state rather
// than a genuine close. Observed race in the exchange's own feed.
const DefaultGraceWindow = 5 * time.Second

// Stats aggregates balance and win/loss accounting. Daily counters
// reset on the first bar of each new UTC day; lifetime counters never
// reset.
type Stats struct {
	Balance     float64
	MaxBalance  float64
	MaxDrawdown float64 // most negative percent change from peak
	DailyWon    int
	DailyLost   int
	DailyEven   int
	DailyTrades int
	TotalWon    int
	TotalLost   int
	TotalEven   int
	TotalTrades int
}

// Exporter persists a closed trade together with the order audit map.
// Export failure is logged and never blocks clearing the active trade;
// the close is authoritative once reconciled.
type Exporter interface {
	ExportClose(t *Trade, orders map[string]OrderEntry) error
}

// Config sets the account's static parameters.
type Config struct {
	StartBalance float64
	GraceWindow  time.Duration // zero means DefaultGraceWindow
	QtyPrecision int           // decimal places for sizing, zero means risk.DefaultPrecision
}

// Account reconciles local trade intent against exchange echoes.
type Account struct {
	log      *logrus.Entry
	settle   Settler
	exporter Exporter

	grace        time.Duration
	qtyPrecision int

	state       State
	trade       *Trade
	history     []*Trade
	orders      map[string]*OrderEntry
	stats       Stats
	lastBarDate time.Time
	lastReport  PositionReport
}

// New builds an account in Flat state. exporter may be nil.
func New(cfg Config, settle Settler, exporter Exporter, log *logrus.Entry) *Account {
	grace := cfg.GraceWindow
	if grace == 0 {
		grace = DefaultGraceWindow
	}
	precision := cfg.QtyPrecision
	if precision == 0 {
		precision = risk.DefaultPrecision
	}
	return &Account{
		log:          log,
		settle:       settle,
		exporter:     exporter,
		grace:        grace,
		qtyPrecision: precision,
		orders:       make(map[string]*OrderEntry),
		stats: Stats{
			Balance:    cfg.StartBalance,
			MaxBalance: cfg.StartBalance,
		},
	}
}

// State returns the current trade-cycle state.
func (a *Account) State() State { return a.state }

// Trade returns the active trade, or nil when flat.
func (a *Account) Trade() *Trade { return a.trade }

// Stats returns a copy of the running counters.
func (a *Account) Stats() Stats { return a.stats }

// History returns the closed trades, oldest first.
func (a *Account) History() []*Trade { return a.history }

// Orders returns a copy of the order audit map.
func (a *Account) Orders() map[string]OrderEntry {
	out := make(map[string]OrderEntry, len(a.orders))
	for k, v := range a.orders {
		out[k] = *v
	}
	return out
}

// Position returns the most recent non-zero position report, mirroring
// exchange-visible state for display and audit.
func (a *Account) Position() PositionReport { return a.lastReport }

// Open records the intent to trade. Valid only in Flat state; the size
// is derived from the current balance and the stop distance. Placing
// the actual exchange order is the caller's responsibility.
func (a *Account) Open(side Side, entry, stop, takeProfit, riskPct float64, ts time.Time) (*Trade, error) {
	if a.state != Flat {
		return nil, ErrTradeActive
	}

	size, err := risk.SizeAt(a.stats.Balance, riskPct, entry, stop, a.qtyPrecision)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", side, err)
	}

	t := &Trade{
		ID:         id.New(),
		Side:       side,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: takeProfit,
		Risk:       riskPct,
		Size:       size,
		OpenedAt:   ts,
		Meta:       map[string]any{"initialstop": stop},
	}

	a.trade = t
	a.state = Open
	a.stats.DailyTrades++
	a.stats.TotalTrades++

	a.log.WithFields(logrus.Fields{
		"trade": t.ID,
		"side":  side,
		"entry": entry,
		"stop":  stop,
		"tp":    takeProfit,
		"size":  size,
		"rr":    risk.RR(entry, stop, takeProfit),
	}).Info("trade opened")

	return t, nil
}

// RecordOrderAck upserts the order audit entry as open. A late ack
// never reopens an order already marked filled.
func (a *Account) RecordOrderAck(orderID string, leaves float64, payload []byte) error {
	if orderID == "" {
		return ErrMissingOrderID
	}
	if e, ok := a.orders[orderID]; ok {
		e.Leaves = leaves
		e.Details = payload
		if e.Status != OrderFilled {
			e.Status = OrderOpen
		}
		return nil
	}
	a.orders[orderID] = &OrderEntry{Status: OrderOpen, Leaves: leaves, Details: payload}
	return nil
}

// RecordExecution updates the order's remaining quantity, marking it
// filled when nothing is left. Fills are informational; position truth
// comes from PositionUpdate.
func (a *Account) RecordExecution(orderID string, leavesQty float64, payload []byte) error {
	if orderID == "" {
		return ErrMissingOrderID
	}
	e, ok := a.orders[orderID]
	if !ok {
		e = &OrderEntry{Status: OrderOpen}
		a.orders[orderID] = e
	}
	e.Leaves = leavesQty
	e.Details = payload
	if leavesQty == 0 {
		e.Status = OrderFilled
		a.log.WithField("order", orderID).Debug("order filled")
	}
	return nil
}

// PositionUpdate is the reconciliation point. A zero size while Open
// closes the trade unless it lands inside the grace window, in which
// case it is a stale echo and ignored. A non-zero size only refreshes
// the exchange-visible mirror. The returned trade is non-nil when a
// close was reconciled.
func (a *Account) PositionUpdate(rep PositionReport) (*Trade, error) {
	if rep.Size != 0 {
		a.lastReport = rep
		return nil, nil
	}

	if a.state != Open || a.trade == nil {
		a.log.Debug("flat position report with no active trade")
		return nil, nil
	}

	if rep.Timestamp.Sub(a.trade.OpenedAt) <= a.grace {
		a.log.WithFields(logrus.Fields{
			"trade": a.trade.ID,
			"age":   rep.Timestamp.Sub(a.trade.OpenedAt),
		}).Debug("zero-size echo inside grace window, ignoring")
		return nil, nil
	}

	// Resolve the new balance before mutating anything so a malformed
	// report leaves the machine untouched.
	before := a.stats.Balance
	after, err := a.settle.Settle(before, a.trade, rep)
	if err != nil {
		return nil, fmt.Errorf("settle trade %s: %w", a.trade.ID, err)
	}

	a.state = Closing
	t := a.trade

	profit := after - before
	pct := percent(before, after)

	a.stats.Balance = after
	if after > a.stats.MaxBalance {
		a.stats.MaxBalance = after
	}
	if dd := percent(a.stats.MaxBalance, after); dd < a.stats.MaxDrawdown {
		a.stats.MaxDrawdown = dd
	}

	switch {
	case profit > 0:
		a.stats.DailyWon++
		a.stats.TotalWon++
	case profit < 0:
		a.stats.DailyLost++
		a.stats.TotalLost++
	default:
		a.stats.DailyEven++
		a.stats.TotalEven++
	}

	closedAt := rep.Timestamp
	t.ClosedAt = &closedAt
	t.Result = &Result{
		Profit:  profit,
		Percent: pct,
		Balance: Balances{Before: before, After: after},
	}

	if a.exporter != nil {
		if err := a.exporter.ExportClose(t, a.Orders()); err != nil {
			a.log.WithError(err).WithField("trade", t.ID).Error("trade export failed")
		}
	}

	a.history = append(a.history, t)
	a.trade = nil
	a.state = Flat

	a.log.WithFields(logrus.Fields{
		"trade":       t.ID,
		"profit":      profit,
		"percent":     pct,
		"balance":     after,
		"dailywon":    a.stats.DailyWon,
		"dailylost":   a.stats.DailyLost,
		"dailytrades": a.stats.DailyTrades,
	}).Info("trade closed")

	return t, nil
}

// OnBarClose is called once per confirmed bar before signal logic. The
// first bar of a new UTC day resets the daily counters exactly once;
// lifetime counters are unaffected.
func (a *Account) OnBarClose(ts time.Time) {
	if !a.lastBarDate.IsZero() && !market.SameDay(a.lastBarDate, ts) {
		a.stats.DailyWon = 0
		a.stats.DailyLost = 0
		a.stats.DailyEven = 0
		a.stats.DailyTrades = 0
		a.log.WithField("date", ts.UTC().Format("2006-01-02")).Info("daily counters reset")
	}
	a.lastBarDate = ts
}

// percent is the percent change from one balance to another.
func percent(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
