package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"formrelay/internal/config"
	"formrelay/internal/logbus"
)

func dialTest(t *testing.T, srv *httptest.Server, origin string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	var hdr http.Header
	if origin != "" {
		hdr = http.Header{"Origin": []string{origin}}
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readLog(t *testing.T, conn *websocket.Conn) logbus.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg logbus.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func logMsg(t *testing.T, msg logbus.Message) string {
	t.Helper()
	data, ok := msg.Data.(map[string]any)
	if !ok {
		t.Fatalf("data type %T", msg.Data)
	}
	s, _ := data["msg"].(string)
	return s
}

func TestStreamReplaysHistoryThenLive(t *testing.T) {
	bus := logbus.New(10)
	defer bus.Close()
	bus.Log("info", "before connect", nil)

	srv := httptest.NewServer(NewHandler(bus, config.CorsConfig{}))
	defer srv.Close()

	conn := dialTest(t, srv, "")
	if got := logMsg(t, readLog(t, conn)); got != "before connect" {
		t.Fatalf("replayed msg = %q", got)
	}

	bus.Log("info", "after connect", nil)
	if got := logMsg(t, readLog(t, conn)); got != "after connect" {
		t.Fatalf("live msg = %q", got)
	}
}

func TestOriginRejected(t *testing.T) {
	bus := logbus.New(10)
	defer bus.Close()
	cors := config.CorsConfig{AllowOrigins: []string{"https://app.example.com"}}

	srv := httptest.NewServer(NewHandler(bus, cors))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	hdr := http.Header{"Origin": []string{"https://evil.example.net"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, hdr); err == nil {
		t.Fatal("dial from disallowed origin should fail")
	}

	conn := dialTest(t, srv, "https://app.example.com")
	bus.Log("info", "ok", nil)
	if got := logMsg(t, readLog(t, conn)); got != "ok" {
		t.Fatalf("msg = %q", got)
	}
}

func TestNilBusUnavailable(t *testing.T) {
	srv := httptest.NewServer(NewHandler(nil, config.CorsConfig{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
