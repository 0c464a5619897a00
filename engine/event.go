package engine

import (
	"encoding/json"
	"time"

	"github.com/culda/skalpit/market"
)

// Event is the closed set of inbound message kinds. The transport
// decodes raw frames into these exactly once; the loop switches
// exhaustively and never inspects topic strings.
type Event interface {
	isEvent()
}

// AuthEvent reports the outcome of the private-channel handshake.
// Until a successful auth arrives, signals are evaluated but never
// acted on.
type AuthEvent struct {
	Success bool
}

// KlineEvent carries one or more ticks of the forming bar for a
// timeframe. Seed batches after (re)connect arrive on the same path
// as live ticks.
type KlineEvent struct {
	Timeframe market.Timeframe
	Ticks     []market.Bar
}

// PositionEvent mirrors the exchange's position report.
type PositionEvent struct {
	Size          float64
	WalletBalance float64
	Received      time.Time
	Raw           json.RawMessage
}

// OrderEvent acknowledges an order placement or amendment.
type OrderEvent struct {
	OrderID   string
	LeavesQty float64
	Raw       json.RawMessage
}

// ExecutionEvent reports a (partial) fill.
type ExecutionEvent struct {
	OrderID   string
	LeavesQty float64
	Raw       json.RawMessage
}

// ConnectedEvent marks a fresh transport session after bar seeding.
type ConnectedEvent struct{}

// DisconnectedEvent marks loss of the transport session; the stream
// reconnects on its own, but authentication must be re-established.
type DisconnectedEvent struct {
	Err error
}

func (AuthEvent) isEvent()         {}
func (KlineEvent) isEvent()        {}
func (PositionEvent) isEvent()     {}
func (OrderEvent) isEvent()        {}
func (ExecutionEvent) isEvent()    {}
func (ConnectedEvent) isEvent()    {}
func (DisconnectedEvent) isEvent() {}
