package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rpctail/internal/filter"
	"rpctail/internal/metrics"
	"rpctail/internal/models"
	"rpctail/internal/stream"
	"rpctail/internal/tail"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestRouter(m *mockTail) *gin.Engine {
	h := NewHandler(m, nil, nil, prometheus.NewRegistry())
	return h.InitRoutes()
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json %q: %v", w.Body.String(), err)
	}
	return out
}

func sampleEvents() []models.Event {
	return []models.Event{
		{RequestID: "r3", Network: "base", Method: "eth_call", Status: models.OutcomeError, CreatedAt: time.Unix(3, 0)},
		{RequestID: "r2", Network: "eth-mainnet", Method: "eth_blockNumber", Status: models.OutcomeSuccess, CreatedAt: time.Unix(2, 0)},
		{RequestID: "r1", Network: "base", Method: "eth_getBalance", Status: models.OutcomeSuccess, CreatedAt: time.Unix(1, 0)},
	}
}

func TestHealth(t *testing.T) {
	m := &mockTail{view: tail.View{SessionID: "s-1", Connection: stream.StateOpen}}
	w := doRequest(newTestRouter(m), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != statusOK || body["session"] != "s-1" || body["connection"] != "open" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestCommands(t *testing.T) {
	m := &mockTail{view: tail.View{Events: sampleEvents()}}
	r := newTestRouter(m)

	cases := []struct {
		path   string
		status string
	}{
		{"/api/v1/pause", statusPaused},
		{"/api/v1/resume", statusResumed},
		{"/api/v1/clear", statusCleared},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, tc.path, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
			if got := decodeBody(t, w)["status"]; got != tc.status {
				t.Fatalf("status field=%v, want %s", got, tc.status)
			}
		})
	}

	if m.pauses != 1 || m.resumes != 1 || m.clears != 1 {
		t.Fatalf("calls: pause=%d resume=%d clear=%d", m.pauses, m.resumes, m.clears)
	}
	if len(m.View().Events) != 0 {
		t.Fatalf("window not cleared")
	}
}

func TestCommands_EngineClosed(t *testing.T) {
	for _, err := range []error{tail.ErrClosed, tail.ErrNotStarted} {
		m := &mockTail{err: err}
		w := doRequest(newTestRouter(m), http.MethodPost, "/api/v1/pause", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%v: status=%d", err, w.Code)
		}
	}

	m := &mockTail{err: fmt.Errorf("boom")}
	w := doRequest(newTestRouter(m), http.MethodPost, "/api/v1/clear", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSetFilter(t *testing.T) {
	m := &mockTail{}
	r := newTestRouter(m)

	w := doRequest(r, http.MethodPut, "/api/v1/filter", `{"search":"  eth_call ","network":"base","outcome":"ERROR"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	want := filter.Criteria{Search: "  eth_call ", Network: "base", Outcome: models.OutcomeError}
	if got := m.View().Criteria; got != want {
		t.Fatalf("criteria=%+v, want %+v", got, want)
	}

	w = doRequest(r, http.MethodPut, "/api/v1/filter", `{"outcome":"timeout"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid outcome: status=%d", w.Code)
	}
	w = doRequest(r, http.MethodPut, "/api/v1/filter", `{`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status=%d", w.Code)
	}
	if got := m.View().Criteria; got != want {
		t.Fatalf("rejected request changed criteria: %+v", got)
	}
}

func TestGetView_IncludesVisible(t *testing.T) {
	m := &mockTail{view: tail.View{
		Events:   sampleEvents(),
		Criteria: filter.Criteria{Network: "base"},
	}}
	w := doRequest(newTestRouter(m), http.MethodGet, "/api/v1/view", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp struct {
		Events  []models.Event `json:"events"`
		Visible []models.Event `json:"visible"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 3 || len(resp.Visible) != 2 {
		t.Fatalf("events=%d visible=%d", len(resp.Events), len(resp.Visible))
	}
	if resp.Visible[0].RequestID != "r3" || resp.Visible[1].RequestID != "r1" {
		t.Fatalf("visible order: %+v", resp.Visible)
	}
}

func TestGetStats(t *testing.T) {
	m := &mockTail{view: tail.View{StatsError: "dial tcp: refused"}}
	r := newTestRouter(m)

	w := doRequest(r, http.MethodGet, "/api/v1/stats", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("no stats yet: status=%d", w.Code)
	}
	if decodeBody(t, w)["cause"] != "dial tcp: refused" {
		t.Fatalf("missing cause")
	}

	m.update(func(v *tail.View) {
		v.Stats = &models.AggregateStats{TotalRequests: 10, ErrorCount: 1, AvgLatency: 12.5}
	})
	w = doRequest(r, http.MethodGet, "/api/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := decodeBody(t, w)
	stats, _ := body["stats"].(map[string]interface{})
	if stats["totalRequests"] != float64(10) {
		t.Fatalf("stats=%v", body)
	}
	if body["error"] != "dial tcp: refused" {
		t.Fatalf("last-good value should carry the latest error: %v", body)
	}
}

func TestGetNetworks_EmptyIsArray(t *testing.T) {
	m := &mockTail{}
	w := doRequest(newTestRouter(m), http.MethodGet, "/api/v1/networks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"networks":[]`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestRequestMiddleware_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	hm := metrics.NewHTTP(reg)
	h := NewHandler(&mockTail{}, nil, hm, reg)
	r := h.InitRoutes()

	doRequest(r, http.MethodGet, "/health", "")
	doRequest(r, http.MethodGet, "/health", "")
	doRequest(r, http.MethodGet, "/nope", "")

	n, err := testutil.GatherAndCount(reg, "rpctail_http_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("series=%d, want 2 (health + unmatched)", n)
	}

	w := doRequest(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "rpctail_http_requests_total") {
		t.Fatalf("metrics endpoint: status=%d", w.Code)
	}
}
