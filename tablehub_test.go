package main

import (
	"flag"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var seed *int64

func TestMain(m *testing.M) {
	seed = flag.Int64("seed", time.Now().UnixNano(), "Seed for RNG used by fuzzer (default: time in nanoseconds)")
	flag.Parse()
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	return startServerConfig(t, defaultConfig())
}

func startServerConfig(t *testing.T, cfg *config) *httptest.Server {
	t.Helper()
	cfg.StaticDir = t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg.StaticDir, "index.html"), []byte("<html>table</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(newHandler(cfg))
	t.Cleanup(server.Close)
	return server
}

func mockWs(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	ws, resp, err := dialWs(server, nil)
	if err != nil {
		t.Fatal("dial error:", err, "resp:", resp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func dialWs(server *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/"
	dialer := &websocket.Dialer{
		NetDial: func(network, addr string) (net.Conn, error) {
			d := net.Dialer{
				Timeout: 3 * time.Second,
			}
			return d.Dial(network, addr)
		},
		HandshakeTimeout: 3 * time.Second,
	}
	return dialer.Dial(u, header)
}

func readFrame(t *testing.T, ws *websocket.Conn) []frameEntry {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := ws.ReadMessage()
	if err != nil {
		t.Fatal("ReadMessage:", err)
	}
	return decodeFrame(t, message)
}

func expectType(t *testing.T, frame []frameEntry, want string) frameEntry {
	t.Helper()
	if len(frame) != 1 || frame[0].Type != want {
		t.Fatal("Expectation:", want, "Received:", frame)
	}
	return frame[0]
}

func send(t *testing.T, ws *websocket.Conn, message string) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		t.Fatal("WriteMessage:", err)
	}
}

func TestIndexRedirect(t *testing.T) {
	server := startServer(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/static/index.html" {
		t.Fatal("Expectation: 302 to /static/index.html, Received:", resp.Status, resp.Header.Get("Location"))
	}
}

func TestStatic(t *testing.T) {
	server := startServer(t)
	resp, err := http.Get(server.URL + "/static/index.html")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "table") {
		t.Fatal("Expectation: index.html, Received:", string(body))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := startServer(t)
	readFrame(t, mockWs(t, server))
	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "tablehub_") {
		t.Fatal("Expectation: Prometheus text, Received:", resp.Status, string(body))
	}
}

func TestPlainGetOnWebsocketPath(t *testing.T) {
	server := startServer(t)
	resp, err := http.Get(server.URL + "/ws/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatal("Expectation: 400, Received:", resp.Status)
	}
}

func TestClients(t *testing.T) {
	server := startServer(t)

	t.Log("TestClients: first client is player 1 and gets the seed table")
	a := mockWs(t, server)
	snapshot := readFrame(t, a)
	if len(snapshot) != 3 {
		t.Fatal("Expectation: 3 notifications, Received:", snapshot)
	}
	var pn playerNumberPayload
	payloadOf(t, snapshot[0], &pn)
	if pn.PlayerNumber != 1 {
		t.Fatal("Expectation: 1, Received:", pn.PlayerNumber)
	}
	var sc setComponentsPayload
	payloadOf(t, snapshot[1], &sc)
	if len(sc.Components) != 7 {
		t.Fatal("Expectation: 7 components, Received:", len(sc.Components))
	}
	var sh setHandsPayload
	payloadOf(t, snapshot[2], &sh)
	if len(sh.Hands) != 1 {
		t.Fatal("Expectation: 1 hand, Received:", len(sh.Hands))
	}
	expectType(t, readFrame(t, a), "connectPlayer")

	t.Log("TestClients: second client is player 2")
	b := mockWs(t, server)
	payloadOf(t, readFrame(t, b)[0], &pn)
	if pn.PlayerNumber != 2 {
		t.Fatal("Expectation: 2, Received:", pn.PlayerNumber)
	}
	expectType(t, readFrame(t, b), "connectPlayer")
	expectType(t, readFrame(t, a), "connectPlayer")

	t.Log("TestClients: owner moves component 0, only the other client hears")
	send(t, a, `{"type":"MoveComponent","payload":{"component_id":0,"x":50,"y":60}}`)
	var uc updateComponentPayload
	payloadOf(t, expectType(t, readFrame(t, b), "updateComponent"), &uc)
	if uc.ComponentID != 0 || uc.Component.X != 50 || uc.Component.Y != 60 {
		t.Fatal("Expectation: component 0 at 50,60, Received:", uc)
	}

	t.Log("TestClients: non-owner move, malformed input, then a valid select")
	send(t, a, `{"type":"MoveComponent","payload":{"component_id":4,"x":10,"y":10}}`)
	send(t, a, `{"type":"Teleport"}`)
	send(t, a, `{"type":"SelectComponent","payload":{"component_id":99}}`)
	send(t, a, `{"type":"SelectComponent","payload":{"component_id":2}}`)

	// a's next frame is the select: its own move was not echoed and the
	// rejected messages produced nothing.
	for _, ws := range []*websocket.Conn{a, b} {
		payloadOf(t, expectType(t, readFrame(t, ws), "updateComponent"), &uc)
		if uc.ComponentID != 2 || !uc.Component.IsSelected {
			t.Fatal("Expectation: component 2 selected, Received:", uc)
		}
	}

	t.Log("TestClients: first client leaves, second becomes player 1")
	a.Close()
	var dp disconnectPlayerPayload
	payloadOf(t, expectType(t, readFrame(t, b), "disconnectPlayer"), &dp)
	if dp.PlayerNumber != 1 {
		t.Fatal("Expectation: 1, Received:", dp.PlayerNumber)
	}
	payloadOf(t, expectType(t, readFrame(t, b), "playerNumber"), &pn)
	if pn.PlayerNumber != 1 {
		t.Fatal("Expectation: 1, Received:", pn.PlayerNumber)
	}
}

func TestOriginRejected(t *testing.T) {
	cfg := defaultConfig()
	cfg.Origin = "http://good.example"
	server := startServerConfig(t, cfg)

	ws, resp, err := dialWs(server, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		ws.Close()
		t.Fatal("Expectation: handshake refused, Received: connection")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatal("Expectation: 403, Received:", err, resp)
	}

	ws, _, err = dialWs(server, http.Header{"Origin": {"http://good.example"}})
	if err != nil {
		t.Fatal("Expectation: configured origin accepted, Received:", err)
	}
	defer ws.Close()
	readFrame(t, ws)
}

func TestHeartbeatTimeout(t *testing.T) {
	cfg := defaultConfig()
	cfg.Heartbeat.Interval = 50 * time.Millisecond
	cfg.Heartbeat.Timeout = 150 * time.Millisecond
	server := startServerConfig(t, cfg)

	// The first client never reads, so it never answers pings.
	mockWs(t, server)

	// peer reads, and gorilla's default ping handler keeps it alive.
	peer := mockWs(t, server)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frame := readFrame(t, peer)
		if len(frame) == 1 && frame[0].Type == "disconnectPlayer" {
			var pn playerNumberPayload
			payloadOf(t, expectType(t, readFrame(t, peer), "playerNumber"), &pn)
			if pn.PlayerNumber != 1 {
				t.Fatal("Expectation: 1, Received:", pn.PlayerNumber)
			}
			return
		}
	}
	t.Fatal("Expectation: disconnectPlayer for the silent client, Received: timeout")
}
