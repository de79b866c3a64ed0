package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func testConfig(url string) Config {
	logger, _ := zap.NewDevelopment()
	return Config{
		URL:                   url,
		DialTimeout:           10 * time.Second,
		PongTimeout:           15 * time.Second,
		PingInterval:          10 * time.Second,
		ReconnectInitialDelay: 1 * time.Second,
		ReconnectMaxDelay:     30 * time.Second,
		ReconnectBackoffMult:  2.0,
		TickBufferSize:        1000,
		Logger:                logger,
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig("wss://ws-subscriptions-clob.polymarket.com/ws/market")
	mgr := New(cfg)

	if mgr == nil {
		t.Fatal("expected non-nil manager")
	}

	if mgr.url != cfg.URL {
		t.Errorf("expected URL %q, got %q", cfg.URL, mgr.url)
	}

	if mgr.reconnectMgr == nil {
		t.Error("expected non-nil reconnect manager")
	}

	if cap(mgr.tickChan) != cfg.TickBufferSize {
		t.Errorf("expected tick channel capacity %d, got %d", cfg.TickBufferSize, cap(mgr.tickChan))
	}

	if mgr.subscribed == nil {
		t.Error("expected non-nil subscribed map")
	}
}

func TestSubscribe_EmptyTokens(t *testing.T) {
	mgr := New(testConfig("wss://example.invalid/ws/market"))

	err := mgr.Subscribe(context.Background(), []string{})
	if err != nil {
		t.Errorf("expected no error for empty tokens, got %v", err)
	}
}

func TestSubscribe_DuplicateTokens(t *testing.T) {
	mgr := New(testConfig("wss://example.invalid/ws/market"))

	mgr.mu.Lock()
	mgr.subscribed["token1"] = true
	mgr.subscribed["token2"] = true
	mgr.mu.Unlock()

	err := mgr.Subscribe(context.Background(), []string{"token1", "token2"})
	if err != nil {
		t.Errorf("expected no error for duplicate tokens, got %v", err)
	}

	mgr.mu.RLock()
	count := len(mgr.subscribed)
	mgr.mu.RUnlock()

	if count != 2 {
		t.Errorf("expected 2 subscribed tokens, got %d", count)
	}
}

func TestHandleEvent_LastTradePrice(t *testing.T) {
	mgr := New(testConfig("wss://example.invalid/ws/market"))

	mgr.handleEvent(&marketMessage{
		EventType: "last_trade_price",
		AssetID:   "tok-up",
		Price:     "0.62",
		Timestamp: "1700000100000",
	})

	select {
	case tick := <-mgr.tickChan:
		if tick.TokenID != "tok-up" {
			t.Errorf("expected token tok-up, got %s", tick.TokenID)
		}
		if tick.Price != 0.62 {
			t.Errorf("expected price 0.62, got %f", tick.Price)
		}
		if tick.Timestamp.Unix() != 1700000100 {
			t.Errorf("unexpected timestamp %v", tick.Timestamp)
		}
	default:
		t.Fatal("expected a tick on the channel")
	}
}

func TestHandleEvent_IgnoresBookEvents(t *testing.T) {
	mgr := New(testConfig("wss://example.invalid/ws/market"))

	mgr.handleEvent(&marketMessage{EventType: "book", AssetID: "tok-up"})
	mgr.handleEvent(&marketMessage{EventType: "price_change", AssetID: "tok-up"})

	select {
	case tick := <-mgr.tickChan:
		t.Fatalf("expected no tick, got %+v", tick)
	default:
	}
}

func TestHandleEvent_BadPriceDropped(t *testing.T) {
	mgr := New(testConfig("wss://example.invalid/ws/market"))

	mgr.handleEvent(&marketMessage{
		EventType: "last_trade_price",
		AssetID:   "tok-up",
		Price:     "not-a-number",
	})

	select {
	case tick := <-mgr.tickChan:
		t.Fatalf("expected no tick, got %+v", tick)
	default:
	}
}

func TestHandleEvent_ChannelFull(t *testing.T) {
	cfg := testConfig("wss://example.invalid/ws/market")
	cfg.TickBufferSize = 1
	mgr := New(cfg)

	event := &marketMessage{
		EventType: "last_trade_price",
		AssetID:   "tok-up",
		Price:     "0.62",
		Timestamp: "1700000100000",
	}

	// Second delivery finds the channel full and must not block.
	mgr.handleEvent(event)
	done := make(chan struct{})
	go func() {
		mgr.handleEvent(event)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleEvent blocked on full channel")
	}
}

func TestParseEventTime(t *testing.T) {
	ts := parseEventTime("1700000100000")
	if ts.Unix() != 1700000100 {
		t.Errorf("unexpected parsed time %v", ts)
	}

	// Malformed timestamps fall back to receipt time.
	before := time.Now().Add(-time.Second)
	fallback := parseEventTime("garbage")
	if fallback.Before(before) {
		t.Errorf("expected fallback near now, got %v", fallback)
	}
}

func TestManager_EndToEnd(t *testing.T) {
	received := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)

		payload := `[{"event_type":"last_trade_price","asset_id":"tok-up","price":"0.71","timestamp":"1700000100000"}]`
		conn.WriteMessage(websocket.TextMessage, []byte(payload))

		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	mgr := New(testConfig(url))

	if err := mgr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer mgr.Close()

	if err := mgr.Subscribe(context.Background(), []string{"tok-up"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case msg := <-received:
		if !strings.Contains(msg, "tok-up") || !strings.Contains(msg, "market") {
			t.Errorf("unexpected subscribe payload: %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the subscription")
	}

	select {
	case tick := <-mgr.Ticks():
		if tick.TokenID != "tok-up" || tick.Price != 0.71 {
			t.Errorf("unexpected tick %+v", tick)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}
}
