package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/culda/skalpit/account"
	"github.com/culda/skalpit/market"
)

func TestKlinesPagination(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v2/public/kline/list", r.URL.Path)
		assert.Equal(t, "BTCUSD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1", r.URL.Query().Get("interval"))

		from, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		assert.NoError(t, err)
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		assert.NoError(t, err)

		ticks := make([]map[string]any, limit)
		for i := range ticks {
			ticks[i] = map[string]any{
				"start": from + int64(i*60),
				"open":  59750, "high": 59800, "low": 59700, "close": 59775,
				"volume": 1, "turnover": 0.001,
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"ret_code": 0, "result": ticks})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "BTCUSD", Credentials{}, testLogger())

	bars, err := c.Klines(context.Background(), market.M1, 450)
	assert.NoError(t, err)
	assert.Len(t, bars, 450)
	assert.Equal(t, 3, calls, "200+200+50")

	// Pages join without gaps or overlap.
	for i := 1; i < len(bars); i++ {
		assert.Equal(t, time.Minute, bars[i].Start.Sub(bars[i-1].Start))
	}
}

func TestWalletBalance(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/private/wallet/balance", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.NotEmpty(t, r.URL.Query().Get("sign"))
		fmt.Fprint(w, `{"ret_code":0,"result":{"BTC":{"wallet_balance":"0.5213"}}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "BTCUSD", Credentials{Key: "test-key", Secret: "test-secret"}, testLogger())

	balance, err := c.WalletBalance(context.Background(), "BTC")
	assert.NoError(t, err)
	assert.Equal(t, 0.5213, balance)
}

func TestWalletBalanceMissingCoin(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ret_code":0,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "BTCUSD", Credentials{Key: "k", Secret: "s"}, testLogger())
	_, err := c.WalletBalance(context.Background(), "BTC")
	assert.Error(t, err)
}

func TestAPIErrorSurfaced(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ret_code":10002,"ret_msg":"invalid timestamp"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "BTCUSD", Credentials{Key: "k", Secret: "s"}, testLogger())
	err := c.CancelAll(context.Background())
	assert.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "invalid timestamp")
}

func TestPlaceEntrySendsSignedOrder(t *testing.T) {
	t.Parallel()

	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/private/order/create", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"ret_code":0,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "BTCUSD", Credentials{Key: "k", Secret: "s"}, testLogger())
	assert.NoError(t, c.PlaceEntry(context.Background(), account.Short, 2, 60100))

	assert.Equal(t, "Sell", body["side"])
	assert.Equal(t, "Market", body["order_type"])
	assert.Equal(t, "2", body["qty"])
	assert.Equal(t, "60100", body["stop_loss"])
	assert.NotEmpty(t, body["sign"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestSignIsDeterministic(t *testing.T) {
	t.Parallel()

	c := NewClient("http://localhost", "BTCUSD", Credentials{Key: "k", Secret: "s"}, testLogger())
	params := map[string]string{"symbol": "BTCUSD", "api_key": "k", "timestamp": "1709294400000"}

	assert.Equal(t, c.sign(params), c.sign(params))
	assert.Len(t, c.sign(params), 64)
}
