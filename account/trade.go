package account

import (
	"encoding/json"
	"time"
)

// Side is the direction of a trade.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Balances captures the account balance around a close.
type Balances struct {
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// Result records the outcome of a closed trade. Profit is in account
// currency, positive when the balance increased.
type Result struct {
	Profit  float64  `json:"profit"`
	Percent float64  `json:"percent"`
	Balance Balances `json:"balance"`
}

// Trade is the account's intent for one position. At most one Trade is
// active at a time; on close it is moved into the trade history.
type Trade struct {
	ID         string         `json:"id"`
	Side       Side           `json:"side"`
	Entry      float64        `json:"entry"`
	Stop       float64        `json:"stop"`
	TakeProfit float64        `json:"tp"`
	Risk       float64        `json:"risk"`
	Size       float64        `json:"size"`
	OpenedAt   time.Time      `json:"opentimestamp"`
	ClosedAt   *time.Time     `json:"closetimestamp"`
	Result     *Result        `json:"result,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// OrderStatus tracks an exchange order's lifecycle in the audit map.
type OrderStatus string

const (
	OrderOpen   OrderStatus = "open"
	OrderFilled OrderStatus = "filled"
)

// OrderEntry is one row of the order audit map. Entries are only ever
// inserted or updated in place, never deleted; the map is an audit
// trail, not the source of position truth.
type OrderEntry struct {
	Status  OrderStatus     `json:"status"`
	Leaves  float64         `json:"leaves"`
	Details json.RawMessage `json:"details,omitempty"`
}
