package account

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNoWalletBalance rejects a live settlement whose report lacks a
	// usable wallet balance; the close event is dropped and the trade
	// stays open until a well-formed report arrives.
	ErrNoWalletBalance = errors.New("account: position report missing wallet balance")

	// ErrNoClosePrice rejects a simulated settlement without a close
	// price to mark against.
	ErrNoClosePrice = errors.New("account: position report missing close price")
)

// PositionReport is the decoded position event handed to the account.
type PositionReport struct {
	Size          float64
	WalletBalance float64
	// ClosePrice is only populated by simulated feeds; live settlement
	// never looks at it.
	ClosePrice float64
	Timestamp  time.Time
	Raw        json.RawMessage
}

// Settler resolves the post-close balance when a position flattens.
// Live trading trusts the exchange's wallet balance; simulation marks
// the trade against a local close price. Injected at construction so
// the state machine is identical in both modes.
type Settler interface {
	Settle(balance float64, t *Trade, rep PositionReport) (float64, error)
}

// LiveSettler adopts the exchange-reported wallet balance verbatim.
// Balance never changes from locally estimated PnL in live mode.
type LiveSettler struct{}

func (LiveSettler) Settle(balance float64, t *Trade, rep PositionReport) (float64, error) {
	if rep.WalletBalance <= 0 {
		return 0, ErrNoWalletBalance
	}
	return rep.WalletBalance, nil
}

// SimSettler computes the next balance from the trade's entry and the
// report's close price, linear in size.
type SimSettler struct{}

func (SimSettler) Settle(balance float64, t *Trade, rep PositionReport) (float64, error) {
	if rep.ClosePrice <= 0 {
		return 0, ErrNoClosePrice
	}
	move := rep.ClosePrice - t.Entry
	if t.Side == Short {
		move = -move
	}
	return balance + t.Size*move, nil
}
