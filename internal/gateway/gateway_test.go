package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ssantosv/zapbridge/internal/bus"
	"github.com/ssantosv/zapbridge/internal/chatnet"
	"github.com/ssantosv/zapbridge/internal/status"
	"github.com/ssantosv/zapbridge/internal/supervisor"
	"go.uber.org/zap"
)

type testBridge struct {
	sup     *supervisor.Supervisor
	client  *chatnet.MemoryClient
	gateway *Gateway
	server  *httptest.Server
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()

	b := bus.New()
	client := chatnet.NewMemoryClient()
	factory := func(context.Context) (chatnet.Client, error) {
		return client, nil
	}
	sup := supervisor.New(factory, status.NewMachine(b), b, zap.NewNop())
	gw := New(sup, b, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go gw.Run(ctx)

	mux := http.NewServeMux()
	gw.Routes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &testBridge{sup: sup, client: client, gateway: gw, server: server}
}

func (tb *testBridge) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(tb.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// pair drives the session to Connected and drains nothing: callers read
// the resulting frames themselves if they dialed beforehand.
func (tb *testBridge) pair(t *testing.T) {
	t.Helper()
	if err := tb.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	tb.client.EmitReady()
	waitConnected(t, tb.sup)
}

func waitConnected(t *testing.T, sup *supervisor.Supervisor) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sup.Status().Connected {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never reached Connected")
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decode frame %q: %v", frame, err)
	}
	return env
}

// waitEnvelope reads frames until one of the wanted type arrives.
func waitEnvelope(t *testing.T, conn *websocket.Conn, typ string) Envelope {
	t.Helper()
	for i := 0; i < 20; i++ {
		env := readEnvelope(t, conn)
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("never received %s frame", typ)
	return Envelope{}
}

func TestSubscriberGetsStatusOnConnect(t *testing.T) {
	tb := newTestBridge(t)
	conn := tb.dial(t)

	env := readEnvelope(t, conn)
	if env.Type != EventStatus {
		t.Fatalf("first frame type = %q, want %q", env.Type, EventStatus)
	}
	var p StatusPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if p.IsConnected || p.PairingCode != "" {
		t.Fatalf("fresh status = %+v, want disconnected", p)
	}
}

func TestPairingCodeBroadcastsToAllSubscribers(t *testing.T) {
	tb := newTestBridge(t)
	first := tb.dial(t)
	second := tb.dial(t)
	readEnvelope(t, first)
	readEnvelope(t, second)

	if err := tb.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	for _, conn := range []*websocket.Conn{first, second} {
		env := waitEnvelope(t, conn, EventPairingCode)
		var p PairingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			t.Fatalf("decode pairing payload: %v", err)
		}
		if p.Code != chatnet.DemoPairingCode {
			t.Fatalf("pairing code = %q, want %q", p.Code, chatnet.DemoPairingCode)
		}
		if !strings.HasPrefix(p.Image, "data:image/png;base64,") {
			t.Fatalf("pairing image is not a PNG data URL: %.40q", p.Image)
		}
	}
}

func TestLateJoinerGetsPendingPairingCode(t *testing.T) {
	tb := newTestBridge(t)
	if err := tb.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	// Wait until the pairing code is registered before dialing.
	deadline := time.Now().Add(2 * time.Second)
	for tb.sup.Status().PairingCode == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	conn := tb.dial(t)
	env := readEnvelope(t, conn)
	if env.Type != EventStatus {
		t.Fatalf("first frame type = %q, want %q", env.Type, EventStatus)
	}
	var p StatusPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if p.PairingCode != chatnet.DemoPairingCode {
		t.Fatalf("status pairing code = %q, want pending code", p.PairingCode)
	}

	env = readEnvelope(t, conn)
	if env.Type != EventPairingCode {
		t.Fatalf("second frame type = %q, want %q", env.Type, EventPairingCode)
	}
}

func TestLateJoinerGetsLatestPairingCode(t *testing.T) {
	tb := newTestBridge(t)
	if err := tb.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for tb.sup.Status().PairingCode == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// The network rotates the code before the late joiner dials; only
	// the replacement is valid now.
	tb.client.EmitPairingCode("ZAP-DEMO-0001")
	deadline = time.Now().Add(2 * time.Second)
	for tb.sup.Status().PairingCode != "ZAP-DEMO-0001" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if code := tb.sup.Status().PairingCode; code != "ZAP-DEMO-0001" {
		t.Fatalf("stored pairing code = %q, want the replacement", code)
	}

	conn := tb.dial(t)
	env := readEnvelope(t, conn)
	if env.Type != EventStatus {
		t.Fatalf("first frame type = %q, want %q", env.Type, EventStatus)
	}
	var sp StatusPayload
	if err := json.Unmarshal(env.Payload, &sp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if sp.PairingCode != "ZAP-DEMO-0001" {
		t.Fatalf("status pairing code = %q, want the replacement", sp.PairingCode)
	}

	env = readEnvelope(t, conn)
	if env.Type != EventPairingCode {
		t.Fatalf("second frame type = %q, want %q", env.Type, EventPairingCode)
	}
	var pp PairingPayload
	if err := json.Unmarshal(env.Payload, &pp); err != nil {
		t.Fatalf("decode pairing payload: %v", err)
	}
	if pp.Code != "ZAP-DEMO-0001" {
		t.Fatalf("pairing frame code = %q, want the replacement", pp.Code)
	}
}

func TestSendMessageCommandFansOut(t *testing.T) {
	tb := newTestBridge(t)
	tb.pair(t)

	sender := tb.dial(t)
	observer := tb.dial(t)
	readEnvelope(t, sender)
	readEnvelope(t, observer)

	cmd, _ := json.Marshal(map[string]any{
		"type":    CmdSendMessage,
		"payload": SendMessagePayload{ChatID: "5511999990000", Message: "bom dia"},
	})
	if err := sender.WriteMessage(websocket.TextMessage, cmd); err != nil {
		t.Fatalf("write command: %v", err)
	}

	// Both ends of the hub see the result, not just the sender.
	for _, conn := range []*websocket.Conn{sender, observer} {
		env := waitEnvelope(t, conn, EventMessageSent)
		var msg chatnet.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			t.Fatalf("decode message-sent: %v", err)
		}
		if msg.ChatID != "5511999990000@c.us" || msg.Body != "bom dia" {
			t.Fatalf("message-sent payload = %+v", msg)
		}
		if msg.Direction != chatnet.Outbound {
			t.Fatalf("direction = %q, want outbound", msg.Direction)
		}
	}
}

func TestInboundMessageBroadcasts(t *testing.T) {
	tb := newTestBridge(t)
	tb.pair(t)
	conn := tb.dial(t)
	readEnvelope(t, conn)

	tb.client.EmitInbound("5511999990000@c.us", "cadê você?")

	env := waitEnvelope(t, conn, EventNewMessage)
	var msg chatnet.Message
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		t.Fatalf("decode new-message: %v", err)
	}
	if msg.Body != "cadê você?" || msg.Direction != chatnet.Inbound {
		t.Fatalf("new-message payload = %+v", msg)
	}
}

func TestMalformedCommandIsDropped(t *testing.T) {
	tb := newTestBridge(t)
	tb.pair(t)
	conn := tb.dial(t)
	readEnvelope(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	// Missing chatId fails the shape check.
	cmd, _ := json.Marshal(map[string]any{"type": CmdGetMessages, "payload": map[string]string{}})
	if err := conn.WriteMessage(websocket.TextMessage, cmd); err != nil {
		t.Fatalf("write bad command: %v", err)
	}

	// The connection survives and still serves valid commands.
	cmd, _ = json.Marshal(map[string]any{"type": CmdGetChats, "payload": map[string]string{}})
	if err := conn.WriteMessage(websocket.TextMessage, cmd); err != nil {
		t.Fatalf("write get-chats: %v", err)
	}
	waitEnvelope(t, conn, EventChats)
}

func TestCommandWhileDisconnectedBroadcastsError(t *testing.T) {
	tb := newTestBridge(t)
	conn := tb.dial(t)
	readEnvelope(t, conn)

	cmd, _ := json.Marshal(map[string]any{
		"type":    CmdSendMessage,
		"payload": SendMessagePayload{ChatID: "5511999990000@c.us", Message: "oi"},
	})
	if err := conn.WriteMessage(websocket.TextMessage, cmd); err != nil {
		t.Fatalf("write command: %v", err)
	}

	env := waitEnvelope(t, conn, EventError)
	var msg string
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if msg != supervisor.ErrNotConnected.Error() {
		t.Fatalf("error payload = %q", msg)
	}
}

func TestHTTPStatus(t *testing.T) {
	tb := newTestBridge(t)

	resp, err := http.Get(tb.server.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var p StatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.IsConnected {
		t.Fatal("fresh bridge reports connected")
	}
}

func TestHTTPSendMessage(t *testing.T) {
	tb := newTestBridge(t)

	body, _ := json.Marshal(SendMessagePayload{ChatID: "5511999990000", Message: "oi"})
	resp, err := http.Post(tb.server.URL+"/send-message", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /send-message: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status while disconnected = %d, want 400", resp.StatusCode)
	}

	tb.pair(t)

	resp, err = http.Post(tb.server.URL+"/send-message", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /send-message: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var result SendResultPayload
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.MessageID == "" {
		t.Fatalf("result = %+v", result)
	}
}

func TestHTTPSendMessageValidation(t *testing.T) {
	tb := newTestBridge(t)
	tb.pair(t)

	body, _ := json.Marshal(SendMessagePayload{ChatID: "", Message: "oi"})
	resp, err := http.Post(tb.server.URL+"/send-message", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /send-message: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status for empty chatId = %d, want 400", resp.StatusCode)
	}
}

func TestHTTPChats(t *testing.T) {
	tb := newTestBridge(t)

	resp, err := http.Get(tb.server.URL + "/chats")
	if err != nil {
		t.Fatalf("GET /chats: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status while disconnected = %d, want 400", resp.StatusCode)
	}

	tb.pair(t)

	resp, err = http.Get(tb.server.URL + "/chats")
	if err != nil {
		t.Fatalf("GET /chats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var chats []chatnet.Chat
	if err := json.NewDecoder(resp.Body).Decode(&chats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(chats) == 0 {
		t.Fatal("expected seeded chats")
	}
}

func TestHTTPMessages(t *testing.T) {
	tb := newTestBridge(t)
	tb.pair(t)

	resp, err := http.Get(tb.server.URL + "/messages")
	if err != nil {
		t.Fatalf("GET /messages: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status without chatId = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(tb.server.URL + "/messages?chatId=5511999990000@c.us")
	if err != nil {
		t.Fatalf("GET /messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var msgs []chatnet.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) == 0 {
		t.Fatal("expected seeded messages")
	}
}
