// Package engine routes decoded exchange events to the account state
// machine and the bar aggregator, and turns confirmed-bar signals into
// orders. Everything runs on one goroutine, so account and bar state
// need no locking; the transport feeds the loop through a channel.
package engine

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/culda/skalpit/account"
	"github.com/culda/skalpit/market"
	"github.com/culda/skalpit/strategies"
)

// Exchange is the order-placement collaborator. The engine only ever
// places a market entry with an attached stop, a reduce-only
// take-profit, or cancels everything.
type Exchange interface {
	PlaceEntry(ctx context.Context, side account.Side, qty, stopLoss float64) error
	PlaceTakeProfit(ctx context.Context, side account.Side, qty, price float64) error
	CancelAll(ctx context.Context) error
}

// Config tunes the loop.
type Config struct {
	Timeframes      []market.Timeframe
	SignalTimeframe market.Timeframe // confirmations of this frame drive signals
	Capacity        int              // bars retained per frame
	Warmup          int              // confirmed bars required per frame before acting
	RiskPercent     float64          // risk budget per trade, in percent
	PricePrecision  int              // decimal places for stop/take prices
	Simulate        bool             // synthesize position closes from bar ranges
}

// Engine is the event dispatcher.
type Engine struct {
	cfg   Config
	log   *logrus.Entry
	acct  *account.Account
	agg   *market.Aggregator
	strat strategies.Strategy
	ex    Exchange

	ctx    context.Context
	authed bool
}

// New wires the aggregator's confirm callback into the engine.
func New(cfg Config, acct *account.Account, strat strategies.Strategy, ex Exchange, log *logrus.Entry) *Engine {
	if cfg.Warmup <= 0 {
		cfg.Warmup = 1
	}
	e := &Engine{
		cfg:   cfg,
		log:   log,
		acct:  acct,
		strat: strat,
		ex:    ex,
	}
	e.agg = market.NewAggregator(cfg.Timeframes, cfg.Capacity, e.onBarConfirmed, log)
	return e
}

// Bars exposes the aggregator's read-only view, mainly for tests and
// status reporting.
func (e *Engine) Bars() market.View { return e.agg }

// Run consumes events in arrival order until the channel closes or the
// context is cancelled. Each event is applied atomically: a failure
// drops that event with a log line and the loop stays live.
func (e *Engine) Run(ctx context.Context, events <-chan Event) error {
	e.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.dispatch(ev)
		}
	}
}

// dispatch applies a single event. A panic from a malformed payload is
// contained here so one bad event cannot take down the loop.
func (e *Engine) dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("panic", r).Error("event dropped")
		}
	}()

	switch ev := ev.(type) {
	case AuthEvent:
		e.authed = ev.Success
		if ev.Success {
			e.log.Info("exchange authenticated, live trading enabled")
		} else {
			e.log.Warn("exchange authentication failed, signals will not be acted on")
		}

	case KlineEvent:
		if err := e.agg.Ingest(ev.Timeframe, ev.Ticks...); err != nil {
			e.log.WithError(err).Warn("kline event dropped")
		}

	case PositionEvent:
		e.handlePosition(ev)

	case OrderEvent:
		if err := e.acct.RecordOrderAck(ev.OrderID, ev.LeavesQty, ev.Raw); err != nil {
			e.log.WithError(err).Warn("order event dropped")
		}

	case ExecutionEvent:
		if err := e.acct.RecordExecution(ev.OrderID, ev.LeavesQty, ev.Raw); err != nil {
			e.log.WithError(err).Warn("execution event dropped")
		}

	case ConnectedEvent:
		e.log.Info("transport connected, bar buffers seeded")

	case DisconnectedEvent:
		// The next session must re-authenticate before acting.
		e.authed = false
		e.log.WithError(ev.Err).Warn("transport disconnected")
	}
}

func (e *Engine) handlePosition(ev PositionEvent) {
	closed, err := e.acct.PositionUpdate(account.PositionReport{
		Size:          ev.Size,
		WalletBalance: ev.WalletBalance,
		Timestamp:     ev.Received,
		Raw:           ev.Raw,
	})
	if err != nil {
		e.log.WithError(err).Warn("position event dropped")
		return
	}
	if closed == nil {
		return
	}
	// The position is flat: any resting take-profit is now orphaned.
	if err := e.ex.CancelAll(e.ctx); err != nil {
		e.log.WithError(err).Error("cancel resting orders failed")
	}
}

// onBarConfirmed fires synchronously from the aggregator while a kline
// event is being applied, still on the loop goroutine.
func (e *Engine) onBarConfirmed(tf market.Timeframe, s *market.Series) {
	if e.cfg.Simulate {
		e.simulateFill(s)
	}

	if tf != e.cfg.SignalTimeframe {
		return
	}

	forming, ok := s.Forming()
	if !ok {
		return
	}
	now := forming.Start

	// Daily boundary handling always precedes signal logic.
	e.acct.OnBarClose(now)

	if !e.authed {
		return
	}
	if e.acct.State() != account.Flat {
		return
	}
	if !e.agg.Warm(e.cfg.Warmup) {
		return
	}

	sig := e.strat.OnBar(e.agg)
	if sig.Direction == strategies.None {
		return
	}
	if sig.Stop <= 0 || sig.Take <= 0 {
		e.log.WithField("strategy", e.strat.Name()).Warn("signal with non-positive distances ignored")
		return
	}

	entry := forming.Open
	var side account.Side
	var stop, take float64
	switch sig.Direction {
	case strategies.Long:
		side = account.Long
		stop = e.roundPrice(entry - sig.Stop)
		take = e.roundPrice(entry + sig.Take)
	case strategies.Short:
		side = account.Short
		stop = e.roundPrice(entry + sig.Stop)
		take = e.roundPrice(entry - sig.Take)
	}

	t, err := e.acct.Open(side, entry, stop, take, e.cfg.RiskPercent, now)
	if err != nil {
		e.log.WithError(err).Warn("signal rejected")
		return
	}

	if err := e.ex.PlaceEntry(e.ctx, side, t.Size, stop); err != nil {
		e.log.WithError(err).WithField("trade", t.ID).Error("entry order failed")
		return
	}

	exitSide := account.Short
	if side == account.Short {
		exitSide = account.Long
	}
	if err := e.ex.PlaceTakeProfit(e.ctx, exitSide, t.Size, take); err != nil {
		e.log.WithError(err).WithField("trade", t.ID).Error("take-profit order failed")
	}
}

// simulateFill closes an open paper trade when the just-confirmed
// bar's range crosses the stop or the take. The stop wins when a bar
// straddles both.
func (e *Engine) simulateFill(s *market.Series) {
	t := e.acct.Trade()
	if t == nil || e.acct.State() != account.Open {
		return
	}
	bar, ok := s.LastConfirmed()
	if !ok || !bar.Start.After(t.OpenedAt) {
		return
	}

	var px float64
	switch t.Side {
	case account.Long:
		if bar.Low <= t.Stop {
			px = t.Stop
		} else if bar.High >= t.TakeProfit {
			px = t.TakeProfit
		}
	case account.Short:
		if bar.High >= t.Stop {
			px = t.Stop
		} else if bar.Low <= t.TakeProfit {
			px = t.TakeProfit
		}
	}
	if px == 0 {
		return
	}

	end := bar.Start.Add(s.Timeframe().Duration())
	if _, err := e.acct.PositionUpdate(account.PositionReport{
		ClosePrice: px,
		Timestamp:  end,
	}); err != nil {
		e.log.WithError(err).Warn("simulated close failed")
	}
}

func (e *Engine) roundPrice(p float64) float64 {
	pow := math.Pow(10, float64(e.cfg.PricePrecision))
	return math.Round(p*pow) / pow
}
