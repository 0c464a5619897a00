package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/culda/skalpit/engine"
	"github.com/culda/skalpit/market"
)

// WSConfig tunes the stream session.
type WSConfig struct {
	URL            string
	Symbol         string
	Timeframes     []market.Timeframe
	SeedBars       int           // historical bars fetched per frame on connect
	ReadTimeout    time.Duration // silence tolerated before probing with a ping
	PingInterval   time.Duration // keepalive cadence
	ReconnectDelay time.Duration // fixed pause between sessions
}

func (c *WSConfig) defaults() {
	if c.SeedBars <= 0 {
		c.SeedBars = 200
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 60 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
}

// WS maintains the realtime stream, reconnecting with a fixed delay
// on any failure. Decoded frames are delivered on the Events channel;
// bar buffers are reseeded from REST at the start of every session so
// the aggregator sees no gaps.
type WS struct {
	cfg    WSConfig
	creds  Credentials
	rest   *Client
	log    *logrus.Entry
	events chan engine.Event

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func NewWS(cfg WSConfig, creds Credentials, rest *Client, log *logrus.Entry) *WS {
	cfg.defaults()
	return &WS{
		cfg:    cfg,
		creds:  creds,
		rest:   rest,
		log:    log,
		events: make(chan engine.Event, 64),
	}
}

// Events is the stream the engine consumes. It stays open across
// reconnects; Run closes it when the context ends.
func (w *WS) Events() <-chan engine.Event { return w.events }

// Run keeps a session alive until the context is cancelled.
func (w *WS) Run(ctx context.Context) error {
	defer close(w.events)
	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.emit(ctx, engine.DisconnectedEvent{Err: err})
		w.log.WithError(err).Warnf("stream down, reconnecting in %s", w.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.ReconnectDelay):
		}
	}
}

func (w *WS) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("bybit: dial %s: %w", w.cfg.URL, err)
	}
	w.conn = conn
	defer conn.Close()

	if w.creds.Key != "" {
		if err := w.authenticate(); err != nil {
			return err
		}
	} else {
		// Public sessions carry no private topics, so nothing downstream
		// waits on an exchange auth reply.
		w.emit(ctx, engine.AuthEvent{Success: true})
	}
	if err := w.subscribe(); err != nil {
		return err
	}
	if err := w.seed(ctx); err != nil {
		return err
	}
	w.emit(ctx, engine.ConnectedEvent{})

	stop := make(chan struct{})
	defer close(stop)
	go w.keepAlive(stop)

	return w.readLoop(ctx)
}

// authenticate signs the fixed auth payload with an expiring HMAC.
func (w *WS) authenticate() error {
	expires := time.Now().Add(time.Second).UnixMilli()
	mac := hmac.New(sha256.New, []byte(w.creds.Secret))
	fmt.Fprintf(mac, "GET/realtime%d", expires)
	sig := hex.EncodeToString(mac.Sum(nil))

	return w.send(map[string]any{
		"op":   "auth",
		"args": []any{w.creds.Key, expires, sig},
	})
}

func (w *WS) subscribe() error {
	args := make([]any, 0, len(w.cfg.Timeframes)+3)
	for _, tf := range w.cfg.Timeframes {
		iv, err := interval(tf)
		if err != nil {
			return err
		}
		args = append(args, "klineV2."+iv+"."+w.cfg.Symbol)
	}
	if w.creds.Key != "" {
		args = append(args, "position", "execution", "order")
	}
	return w.send(map[string]any{"op": "subscribe", "args": args})
}

// seed replays recent history through the normal kline path. The
// aggregator deduplicates by bar start, so overlap with live frames
// is harmless.
func (w *WS) seed(ctx context.Context) error {
	for _, tf := range w.cfg.Timeframes {
		bars, err := w.rest.Klines(ctx, tf, w.cfg.SeedBars)
		if err != nil {
			return fmt.Errorf("bybit: seed %s bars: %w", tf, err)
		}
		w.emit(ctx, engine.KlineEvent{Timeframe: tf, Ticks: bars})
	}
	return nil
}

func (w *WS) keepAlive(stop <-chan struct{}) {
	t := time.NewTicker(w.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := w.send(map[string]any{"op": "ping"}); err != nil {
				return
			}
		}
	}
}

func (w *WS) send(v any) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *WS) readLoop(ctx context.Context) error {
	pinged := false
	for {
		if err := w.conn.SetReadDeadline(time.Now().Add(w.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() && !pinged {
				// One probe before giving the session up.
				if perr := w.send(map[string]any{"op": "ping"}); perr != nil {
					return perr
				}
				pinged = true
				continue
			}
			return err
		}
		pinged = false
		w.handle(ctx, raw)
	}
}

func (w *WS) handle(ctx context.Context, raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		w.log.WithError(err).Warn("undecodable frame dropped")
		return
	}

	if env.Topic == "" {
		switch op := env.Request.Op; {
		case op == "auth" || env.Op == "auth":
			w.emit(ctx, engine.AuthEvent{Success: env.Success})
		case op == "subscribe":
			if !env.Success {
				w.log.WithField("ret_msg", env.RetMsg).Warn("subscribe rejected")
			}
		}
		return
	}

	switch {
	case strings.HasPrefix(env.Topic, "klineV2."):
		w.handleKline(ctx, env)
	case env.Topic == "position":
		w.handlePosition(ctx, env)
	case env.Topic == "order":
		w.handleOrder(ctx, env)
	case env.Topic == "execution":
		w.handleExecution(ctx, env)
	}
}

func (w *WS) handleKline(ctx context.Context, env wsEnvelope) {
	parts := strings.SplitN(env.Topic, ".", 3)
	if len(parts) != 3 {
		w.log.WithField("topic", env.Topic).Warn("malformed kline topic")
		return
	}
	tf, ok := timeframeFor(parts[1])
	if !ok {
		w.log.WithField("topic", env.Topic).Warn("kline for unknown interval dropped")
		return
	}
	var ticks []klineTick
	if err := json.Unmarshal(env.Data, &ticks); err != nil {
		w.log.WithError(err).Warn("kline payload dropped")
		return
	}
	bars := make([]market.Bar, len(ticks))
	for i, t := range ticks {
		bars[i] = t.bar()
	}
	w.emit(ctx, engine.KlineEvent{Timeframe: tf, Ticks: bars})
}

func (w *WS) handlePosition(ctx context.Context, env wsEnvelope) {
	var items []json.RawMessage
	if err := json.Unmarshal(env.Data, &items); err != nil {
		w.log.WithError(err).Warn("position payload dropped")
		return
	}
	now := time.Now().UTC()
	for _, item := range items {
		var p positionData
		if err := json.Unmarshal(item, &p); err != nil {
			w.log.WithError(err).Warn("position entry dropped")
			continue
		}
		if p.Symbol != "" && p.Symbol != w.cfg.Symbol {
			continue
		}
		w.emit(ctx, engine.PositionEvent{
			Size:          p.Size.Float64(),
			WalletBalance: p.WalletBalance.Float64(),
			Received:      now,
			Raw:           item,
		})
	}
}

func (w *WS) handleOrder(ctx context.Context, env wsEnvelope) {
	var items []json.RawMessage
	if err := json.Unmarshal(env.Data, &items); err != nil {
		w.log.WithError(err).Warn("order payload dropped")
		return
	}
	for _, item := range items {
		var o orderData
		if err := json.Unmarshal(item, &o); err != nil {
			w.log.WithError(err).Warn("order entry dropped")
			continue
		}
		w.emit(ctx, engine.OrderEvent{
			OrderID:   o.OrderID,
			LeavesQty: o.LeavesQty.Float64(),
			Raw:       item,
		})
	}
}

func (w *WS) handleExecution(ctx context.Context, env wsEnvelope) {
	var items []json.RawMessage
	if err := json.Unmarshal(env.Data, &items); err != nil {
		w.log.WithError(err).Warn("execution payload dropped")
		return
	}
	for _, item := range items {
		var x executionData
		if err := json.Unmarshal(item, &x); err != nil {
			w.log.WithError(err).Warn("execution entry dropped")
			continue
		}
		w.emit(ctx, engine.ExecutionEvent{
			OrderID:   x.OrderID,
			LeavesQty: x.LeavesQty.Float64(),
			Raw:       item,
		})
	}
}

func (w *WS) emit(ctx context.Context, ev engine.Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

func timeframeFor(code string) (market.Timeframe, bool) {
	for tf, iv := range intervals {
		if iv == code {
			return tf, true
		}
	}
	return "", false
}
