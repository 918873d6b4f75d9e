package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/taskpilot/assistant-api/internal/logging"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newSessionServer(t *testing.T, dispatcher *Dispatcher) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		session := NewSession(r.Context(), conn, dispatcher, logging.NewLogger("error", "text", "stderr"))
		session.Run()
	}))
	t.Cleanup(server.Close)
	return server
}

func dialSession(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame failed: %v", err)
	}
	return frame
}

func TestSession_StreamsFallbackTokens(t *testing.T) {
	engine := &fakeEngine{streamTokens: []string{"你", "好"}}
	dispatcher := newTestDispatcher(&fakeQueryProcessor{}, &fakeWeatherService{}, engine)
	server := newSessionServer(t, dispatcher)
	conn := dialSession(t, server)

	err := conn.WriteJSON(InboundMessage{Messages: userMessage("随便聊聊")})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var tokens []string
	for i := 0; i < 2; i++ {
		frame := readFrame(t, conn)
		if frame.Type != FrameStream {
			t.Fatalf("expected stream frame, got %q", frame.Type)
		}
		tokens = append(tokens, frame.Content)
	}
	if strings.Join(tokens, "") != "你好" {
		t.Errorf("unexpected tokens: %v", tokens)
	}
}

func TestSession_MalformedJSONKeepsSessionOpen(t *testing.T) {
	engine := &fakeEngine{streamTokens: []string{"ok"}}
	dispatcher := newTestDispatcher(&fakeQueryProcessor{}, &fakeWeatherService{}, engine)
	server := newSessionServer(t, dispatcher)
	conn := dialSession(t, server)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != FrameError {
		t.Fatalf("expected error frame for malformed input, got %q", frame.Type)
	}

	/* The session must still serve the next message */
	if err := conn.WriteJSON(InboundMessage{Messages: userMessage("随便聊聊")}); err != nil {
		t.Fatalf("write after malformed input failed: %v", err)
	}
	frame = readFrame(t, conn)
	if frame.Type != FrameStream || frame.Content != "ok" {
		t.Fatalf("expected stream frame after recovery, got %+v", frame)
	}
}

func TestSession_SurvivesDispatchLongerThanReadWait(t *testing.T) {
	engine := &fakeEngine{streamTokens: []string{"慢"}, streamDelay: 500 * time.Millisecond}
	dispatcher := newTestDispatcher(&fakeQueryProcessor{}, &fakeWeatherService{}, engine)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		session := NewSession(r.Context(), conn, dispatcher, logging.NewLogger("error", "text", "stderr"))
		session.readWait = 200 * time.Millisecond
		session.Run()
	}))
	t.Cleanup(server.Close)
	conn := dialSession(t, server)

	if err := conn.WriteJSON(InboundMessage{Messages: userMessage("随便聊聊")}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	frame := readFrame(t, conn)
	if frame.Type != FrameStream || frame.Content != "慢" {
		t.Fatalf("expected stream frame, got %+v", frame)
	}

	/* The read deadline elapsed while the first dispatch ran; the
	   session must still serve the next message */
	if err := conn.WriteJSON(InboundMessage{Messages: userMessage("再聊聊")}); err != nil {
		t.Fatalf("write after slow dispatch failed: %v", err)
	}
	frame = readFrame(t, conn)
	if frame.Type != FrameStream {
		t.Fatalf("expected stream frame after slow dispatch, got %+v", frame)
	}
}

func TestSession_TimeCommandEndToEnd(t *testing.T) {
	dispatcher := newTestDispatcher(&fakeQueryProcessor{}, &fakeWeatherService{}, &fakeEngine{})
	server := newSessionServer(t, dispatcher)
	conn := dialSession(t, server)

	if err := conn.WriteJSON(InboundMessage{Messages: userMessage("@当前时间")}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != FrameStream {
		t.Fatalf("expected stream frame, got %q", frame.Type)
	}
	if !strings.Contains(frame.Content, "timestamp") {
		t.Errorf("expected serialized time payload, got %q", frame.Content)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	dispatcher := newTestDispatcher(&fakeQueryProcessor{}, &fakeWeatherService{}, &fakeEngine{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		session := NewSession(r.Context(), conn, dispatcher, logging.NewLogger("error", "text", "stderr"))
		session.Close()
		session.Close()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal closure, got %v", err)
	}
}
