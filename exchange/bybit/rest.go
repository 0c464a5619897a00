// Package bybit talks to the Bybit inverse-perpetual v2 API: a signed
// REST client for orders, balance and historical klines, and a
// websocket session that feeds the engine's event channel.
package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/culda/skalpit/account"
	"github.com/culda/skalpit/market"
)

const (
	MainnetREST = "https://api.bybit.com"
	TestnetREST = "https://api-testnet.bybit.com"
	MainnetWS   = "wss://stream.bybit.com/realtime"
	TestnetWS   = "wss://stream-testnet.bybit.com/realtime"
)

// ErrAPI wraps a non-zero ret_code from the exchange.
var ErrAPI = errors.New("bybit: api error")

// Credentials holds an API key pair.
type Credentials struct {
	Key    string
	Secret string
}

// Client is the signed REST client. All order methods act on the
// configured symbol.
type Client struct {
	base   string
	symbol string
	creds  Credentials
	http   *http.Client
	log    *logrus.Entry
}

func NewClient(base, symbol string, creds Credentials, log *logrus.Entry) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		symbol: symbol,
		creds:  creds,
		http:   &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

type restResponse struct {
	RetCode int             `json:"ret_code"`
	RetMsg  string          `json:"ret_msg"`
	Result  json.RawMessage `json:"result"`
}

// sign produces the v2 request signature: HMAC-SHA256 over the
// key-sorted param string.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	mac := hmac.New(sha256.New, []byte(c.creds.Secret))
	mac.Write([]byte(sb.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) authed(params map[string]string) map[string]string {
	params["api_key"] = c.creds.Key
	params["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	params["sign"] = c.sign(params)
	return params
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bybit: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	var r restResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("bybit: decode %s: %w", req.URL.Path, err)
	}
	if r.RetCode != 0 {
		return nil, fmt.Errorf("%w: %s (ret_code %d)", ErrAPI, r.RetMsg, r.RetCode)
	}
	return r.Result, nil
}

// Klines fetches up to limit historical bars ending now. Bybit pages
// 200 bars per call, oldest first.
func (c *Client) Klines(ctx context.Context, tf market.Timeframe, limit int) ([]market.Bar, error) {
	iv, err := interval(tf)
	if err != nil {
		return nil, err
	}
	from := time.Now().Add(-time.Duration(limit) * tf.Duration()).Unix()

	bars := make([]market.Bar, 0, limit)
	for len(bars) < limit {
		n := limit - len(bars)
		if n > 200 {
			n = 200
		}
		result, err := c.get(ctx, "/v2/public/kline/list", map[string]string{
			"symbol":   c.symbol,
			"interval": iv,
			"from":     strconv.FormatInt(from, 10),
			"limit":    strconv.Itoa(n),
		})
		if err != nil {
			return nil, err
		}
		var ticks []klineTick
		if err := json.Unmarshal(result, &ticks); err != nil {
			return nil, fmt.Errorf("bybit: decode klines: %w", err)
		}
		if len(ticks) == 0 {
			break
		}
		for _, t := range ticks {
			bars = append(bars, t.bar())
		}
		from = ticks[len(ticks)-1].Start + int64(tf.Duration().Seconds())
	}
	return bars, nil
}

// WalletBalance returns the wallet balance of the given coin.
func (c *Client) WalletBalance(ctx context.Context, coin string) (float64, error) {
	result, err := c.get(ctx, "/v2/private/wallet/balance", c.authed(map[string]string{
		"coin": coin,
	}))
	if err != nil {
		return 0, err
	}
	var balances map[string]struct {
		WalletBalance Number `json:"wallet_balance"`
	}
	if err := json.Unmarshal(result, &balances); err != nil {
		return 0, fmt.Errorf("bybit: decode wallet balance: %w", err)
	}
	b, ok := balances[coin]
	if !ok {
		return 0, fmt.Errorf("bybit: no balance for coin %q", coin)
	}
	return b.WalletBalance.Float64(), nil
}

func sideString(s account.Side) string {
	if s == account.Short {
		return "Sell"
	}
	return "Buy"
}

// PlaceEntry submits a market order with the stop loss attached, so
// the position carries its protective stop from the first fill.
func (c *Client) PlaceEntry(ctx context.Context, side account.Side, qty, stopLoss float64) error {
	_, err := c.post(ctx, "/v2/private/order/create", c.authed(map[string]string{
		"symbol":        c.symbol,
		"side":          sideString(side),
		"order_type":    "Market",
		"qty":           strconv.FormatFloat(qty, 'f', -1, 64),
		"stop_loss":     strconv.FormatFloat(stopLoss, 'f', -1, 64),
		"time_in_force": "GoodTillCancel",
	}))
	return err
}

// PlaceTakeProfit rests a reduce-only limit at the target price.
func (c *Client) PlaceTakeProfit(ctx context.Context, side account.Side, qty, price float64) error {
	_, err := c.post(ctx, "/v2/private/order/create", c.authed(map[string]string{
		"symbol":        c.symbol,
		"side":          sideString(side),
		"order_type":    "Limit",
		"qty":           strconv.FormatFloat(qty, 'f', -1, 64),
		"price":         strconv.FormatFloat(price, 'f', -1, 64),
		"reduce_only":   "true",
		"time_in_force": "GoodTillCancel",
	}))
	return err
}

// CancelAll cancels every active order on the symbol.
func (c *Client) CancelAll(ctx context.Context) error {
	_, err := c.post(ctx, "/v2/private/order/cancelAll", c.authed(map[string]string{
		"symbol": c.symbol,
	}))
	return err
}
