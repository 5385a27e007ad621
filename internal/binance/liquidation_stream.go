package binance

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// forceOrderMessage mirrors the futures !forceOrder@arr stream payload.
type forceOrderMessage struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Order     struct {
		Symbol   string `json:"s"`
		Side     string `json:"S"`
		Price    string `json:"ap"` // average fill price
		Quantity string `json:"q"`
		Status   string `json:"X"`
		Time     int64  `json:"T"`
	} `json:"o"`
}

// LiquidationTracker consumes the futures forced-order stream and keeps a
// rolling in-memory window of recent liquidations per symbol. The REST
// endpoint for historical forced orders was retired, so the stream is the
// only public source; until the window has warmed up, callers simply see
// fewer events, which degrades to a smaller confluence boost.
type LiquidationTracker struct {
	wsURL     string
	retention time.Duration

	mu     sync.RWMutex
	events map[string][]LiquidationEvent

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewLiquidationTracker creates a tracker reading from the given stream URL
// (empty for the production endpoint), retaining events for `retention`.
func NewLiquidationTracker(wsURL string, retention time.Duration) *LiquidationTracker {
	if wsURL == "" {
		wsURL = "wss://fstream.binance.com/ws/!forceOrder@arr"
	}
	if retention <= 0 {
		retention = 2 * time.Hour
	}
	return &LiquidationTracker{
		wsURL:     wsURL,
		retention: retention,
		events:    make(map[string][]LiquidationEvent),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the read loop. Reconnects with backoff on failure.
func (t *LiquidationTracker) Start() {
	t.wg.Add(1)
	go t.run()
}

// Stop terminates the read loop and waits for it to exit.
func (t *LiquidationTracker) Stop() {
	close(t.stopChan)
	t.wg.Wait()
}

// Recent returns the retained liquidation events for a symbol, newest last.
func (t *LiquidationTracker) Recent(symbol string) []LiquidationEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-t.retention).UnixMilli()
	var out []LiquidationEvent
	for _, ev := range t.events[symbol] {
		if ev.Time >= cutoff {
			out = append(out, ev)
		}
	}
	return out
}

func (t *LiquidationTracker) run() {
	defer t.wg.Done()

	backoff := time.Second
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(t.wsURL, nil)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("liquidation stream dial failed")
			select {
			case <-time.After(backoff):
			case <-t.stopChan:
				return
			}
			if backoff < time.Minute {
				backoff *= 2
			}
			continue
		}

		log.Info().Str("url", t.wsURL).Msg("liquidation stream connected")
		backoff = time.Second
		t.readLoop(conn)
		conn.Close()
	}
}

func (t *LiquidationTracker) readLoop(conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	// Close from the side when stopping so ReadMessage unblocks.
	go func() {
		select {
		case <-t.stopChan:
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.stopChan:
			default:
				log.Warn().Err(err).Msg("liquidation stream read failed, reconnecting")
			}
			return
		}

		var msg forceOrderMessage
		if err := json.Unmarshal(payload, &msg); err != nil || msg.EventType != "forceOrder" {
			continue
		}

		price, _ := strconv.ParseFloat(msg.Order.Price, 64)
		qty, _ := strconv.ParseFloat(msg.Order.Quantity, 64)
		if price <= 0 || qty <= 0 {
			continue
		}

		side := LongLiquidation
		if msg.Order.Side == "BUY" {
			side = ShortLiquidation
		}

		t.record(LiquidationEvent{
			Symbol:    msg.Order.Symbol,
			Side:      side,
			Price:     price,
			Quantity:  qty,
			USDVolume: price * qty,
			Time:      msg.Order.Time,
		})
	}
}

func (t *LiquidationTracker) record(ev LiquidationEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.retention).UnixMilli()
	kept := t.events[ev.Symbol][:0]
	for _, old := range t.events[ev.Symbol] {
		if old.Time >= cutoff {
			kept = append(kept, old)
		}
	}
	t.events[ev.Symbol] = append(kept, ev)
}
