package bybit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/culda/skalpit/market"
)

// Number decodes Bybit's numeric fields, which show up as either JSON
// numbers or quoted strings depending on endpoint and topic.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("bybit: parse number %q: %w", data, err)
	}
	f, _ := d.Float64()
	*n = Number(f)
	return nil
}

func (n Number) Float64() float64 { return float64(n) }

// wsEnvelope is the common shape of every frame the v1 stream sends.
// Exactly one of Topic (data push) or the op fields (command reply) is
// populated.
type wsEnvelope struct {
	Topic   string `json:"topic"`
	Op      string `json:"op"`
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg"`
	Request struct {
		Op string `json:"op"`
	} `json:"request"`
	Data json.RawMessage `json:"data"`
}

// klineTick is one klineV2 array element. Start is epoch seconds and
// marks the bar's open time.
type klineTick struct {
	Start    int64  `json:"start"`
	Open     Number `json:"open"`
	High     Number `json:"high"`
	Low      Number `json:"low"`
	Close    Number `json:"close"`
	Volume   Number `json:"volume"`
	Turnover Number `json:"turnover"`
}

func (t klineTick) bar() market.Bar {
	return market.Bar{
		Start:    time.Unix(t.Start, 0).UTC(),
		Open:     t.Open.Float64(),
		High:     t.High.Float64(),
		Low:      t.Low.Float64(),
		Close:    t.Close.Float64(),
		Volume:   t.Volume.Float64(),
		Turnover: t.Turnover.Float64(),
	}
}

// positionData carries the fields the account cares about from a
// position push; the raw frame is forwarded untouched alongside.
type positionData struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          Number `json:"size"`
	WalletBalance Number `json:"wallet_balance"`
}

type orderData struct {
	OrderID   string `json:"order_id"`
	Symbol    string `json:"symbol"`
	OrderStat string `json:"order_status"`
	LeavesQty Number `json:"leaves_qty"`
}

type executionData struct {
	OrderID   string `json:"order_id"`
	Symbol    string `json:"symbol"`
	ExecType  string `json:"exec_type"`
	LeavesQty Number `json:"leaves_qty"`
}

// intervals maps our timeframes to Bybit kline interval codes, shared
// by the REST kline endpoint and the klineV2 topic names.
var intervals = map[market.Timeframe]string{
	market.M1:  "1",
	market.M15: "15",
	market.H1:  "60",
}

func interval(tf market.Timeframe) (string, error) {
	iv, ok := intervals[tf]
	if !ok {
		return "", fmt.Errorf("bybit: unsupported timeframe %q", tf)
	}
	return iv, nil
}
