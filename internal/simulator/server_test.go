package simulator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rpctail/internal/models"
	"rpctail/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, sim *Simulator) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(sim.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestPush_InitialThenIncrements(t *testing.T) {
	sim := New(Config{Seed: 2}, nil)
	sim.Emit(models.Event{RequestID: "old"})
	srv := newTestServer(t, sim)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + PushPath
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read initial: %v", err)
	}
	msg, err := stream.Decode(data)
	if err != nil || msg.Kind != stream.KindSnapshot || len(msg.Events) != 1 {
		t.Fatalf("initial = %s (%v)", data, err)
	}

	deadline := time.Now().Add(time.Second)
	for sim.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	sim.Emit(models.Event{RequestID: "new"})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read increment: %v", err)
	}
	msg, err = stream.Decode(data)
	if err != nil || msg.Kind != stream.KindIncrement || msg.Event.RequestID != "new" {
		t.Fatalf("increment = %s (%v)", data, err)
	}
}

func TestRESTEndpoints(t *testing.T) {
	sim := New(Config{Seed: 2}, nil)
	sim.Emit(models.Event{RequestID: "a", LatencyMS: 10})
	srv := newTestServer(t, sim)

	resp, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	defer resp.Body.Close()
	var st models.AggregateStats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.TotalRequests != 1 || st.AvgLatency != 10 {
		t.Fatalf("stats = %+v", st)
	}

	resp2, err := http.Get(srv.URL + "/api/networks")
	if err != nil {
		t.Fatalf("get networks: %v", err)
	}
	defer resp2.Body.Close()
	var nets []models.Network
	if err := json.NewDecoder(resp2.Body).Decode(&nets); err != nil {
		t.Fatalf("decode networks: %v", err)
	}
	if len(nets) != len(defaultNetworks) || nets[0].Slug != "eth-mainnet" {
		t.Fatalf("networks = %+v", nets)
	}
}
