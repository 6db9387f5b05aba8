package api

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"community-energy/internal/api/handlers"
	"community-energy/internal/api/models"
	"community-energy/internal/data"
	"community-energy/internal/ledger"
	"community-energy/internal/metrics"
	"community-energy/internal/simulation"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const scenarioBody = `{
  "grid": {"surplus": 10, "selling_price": 0.10, "buying_price": 0.15, "token_price": 0.12},
  "participants": [
    {"name": "A", "surplus": 20, "transfer_cost": {"B": 0.01, "C": 0.02, "D": 0.03}},
    {"name": "B", "demand": 10, "transfer_cost": {"A": 0.01, "C": 0.02, "D": 0.03}},
    {"name": "C", "surplus": 15, "transfer_cost": {"A": 0.02, "B": 0.01, "D": 0.02}},
    {"name": "D", "demand": 20, "transfer_cost": {"A": 0.03, "B": 0.02, "C": 0.02}}
  ],
  "options": %s
}`

type fixture struct {
	router *gin.Engine
	ledger *ledger.Ledger
	stream *handlers.BlockStream
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, zaptest.NewLogger(t))
}

func newFixtureWithLogger(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	l := ledger.New(logger, nil)
	sim, err := simulation.New(simulation.DefaultParams(), rand.New(rand.NewSource(42)), l, logger)
	if err != nil {
		t.Fatalf("simulation.New: %v", err)
	}
	stream := handlers.NewBlockStream(logger)
	l.OnCommit(stream.Publish)
	t.Cleanup(stream.Close)
	m := metrics.New()
	l.OnCommit(m.CommitHook())
	return &fixture{
		router: NewRouter(Deps{
			Ledger:     l,
			Simulation: sim,
			Cache:      data.NewSettlementCache(time.Minute),
			Stream:     stream,
			Metrics:    m,
			Logger:     logger,
		}),
		ledger: l,
		stream: stream,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestSettle_ScenarioAndLookup(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/settlements", strings.Replace(scenarioBody, "%s", `{"include_transfers": true}`, 1))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.SettlementResponse
	decode(t, w, &resp)

	if resp.ID == "" || resp.Status != "settled" || resp.Block != nil || len(resp.InputDigest) != 64 {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if len(resp.Transfers) != 4 || resp.Summary.GridFinalSurplus != 15 || !resp.Summary.EnergyConserved {
		t.Errorf("summary = %+v, transfers = %d", resp.Summary, len(resp.Transfers))
	}
	if resp.Transfers[0].Phase != "GRID_SELL" || resp.Transfers[0].To != "B" {
		t.Errorf("first transfer = %+v", resp.Transfers[0])
	}
	if resp.Participants[0].Name != "C" || resp.Participants[0].Net.String() != "1.5" {
		t.Errorf("top ranked = %+v", resp.Participants[0])
	}
	if f.ledger.Len() != 1 {
		t.Errorf("uncommitted settlement changed the ledger: len %d", f.ledger.Len())
	}

	w = f.do(t, http.MethodGet, "/api/v1/settlements/"+resp.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", w.Code)
	}
	var again models.SettlementResponse
	decode(t, w, &again)
	if again.ID != resp.ID || len(again.Transfers) != 4 {
		t.Errorf("lookup = %+v", again)
	}

	w = f.do(t, http.MethodGet, "/api/v1/settlements/"+resp.ID+"?phase=PEER", "")
	var peer models.SettlementResponse
	decode(t, w, &peer)
	if len(peer.Transfers) != 2 || peer.Transfers[0].From != "C" || peer.Transfers[1].From != "A" {
		t.Errorf("peer transfers = %+v", peer.Transfers)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/settlements/"+resp.ID+"?phase=BARTER", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad phase status = %d", w.Code)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/settlements/unknown", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d", w.Code)
	}
}

func TestSettle_CommitAppendsBlock(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/settlements", strings.Replace(scenarioBody, "%s", `{"commit": true}`, 1))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.SettlementResponse
	decode(t, w, &resp)
	if resp.Status != "committed" || resp.Block == nil || resp.Block.Index != 1 || resp.Block.Transactions != 4 {
		t.Fatalf("block = %+v", resp.Block)
	}

	w = f.do(t, http.MethodGet, "/api/v1/ledger/blocks/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("block status = %d", w.Code)
	}
	var b ledger.Block
	decode(t, w, &b)
	if b.Hash != resp.Block.Hash || b.Transactions[0].Kind != ledger.KindTransfer {
		t.Errorf("stored block = %+v", b)
	}
}

func TestSettle_Errors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
		code int
		err  string
	}{
		{"malformed", `{"grid":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"negative demand", `{"participants":[{"name":"A","demand":-1}]}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"duplicate", `{"participants":[{"name":"A"},{"name":"A"}]}`, http.StatusUnprocessableEntity, "INVALID_PARTICIPANT"},
		{"missing cost", `{"participants":[{"name":"A","surplus":1},{"name":"B","demand":1}]}`, http.StatusUnprocessableEntity, "MISSING_TRANSFER_COST"},
		{"overflow", `{"grid":{"buying_price":10},"participants":[{"name":"A","surplus":1e308}]}`, http.StatusUnprocessableEntity, "INVALID_PARTICIPANT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/settlements", tt.body)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.code, w.Body.String())
			}
			var e models.ErrorResponse
			decode(t, w, &e)
			if e.Error.Code != tt.err {
				t.Errorf("code = %s, want %s", e.Error.Code, tt.err)
			}
		})
	}
}

func TestSimulation_StepAndVerify(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/simulation/step", `{"steps": 3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.StepResponse
	decode(t, w, &resp)
	if len(resp.Reports) != 3 || resp.State.Tick != 3 || resp.State.LedgerLength != 4 {
		t.Fatalf("step response = %+v", resp)
	}
	if len(resp.State.Nodes) != 5 || resp.State.Pool.Capacity != 100 {
		t.Errorf("state = %+v", resp.State)
	}

	// Empty body means one step.
	if w := f.do(t, http.MethodPost, "/api/v1/simulation/step", ""); w.Code != http.StatusOK {
		t.Fatalf("empty-body step status = %d, body %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/v1/ledger/verify", "")
	var v models.VerifyResponse
	decode(t, w, &v)
	if !v.Valid || v.Length != 5 || v.Error != nil {
		t.Errorf("verify = %+v", v)
	}

	w = f.do(t, http.MethodGet, "/api/v1/ledger/blocks?offset=1&limit=2", "")
	var page models.BlockListResponse
	decode(t, w, &page)
	if page.Total != 5 || len(page.Blocks) != 2 || page.Blocks[0].Index != 1 {
		t.Errorf("page = %+v", page)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/ledger/blocks/99", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing block status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/ledger/blocks/x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad index status = %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/metrics", "")
	for _, want := range []string{"community_energy_simulation_ticks_total 4", "community_energy_ledger_height 4"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestHealthAndPending(t *testing.T) {
	f := newFixture(t)
	f.ledger.AppendPending(ledger.StoredInPool("House_1", 1))

	w := f.do(t, http.MethodGet, "/health", "")
	var h models.HealthResponse
	decode(t, w, &h)
	if h.Status != "ok" || h.LedgerLength != 1 || !h.LedgerValid {
		t.Errorf("health = %+v", h)
	}

	w = f.do(t, http.MethodGet, "/api/v1/ledger/pending", "")
	var p struct {
		Transactions []ledger.Transaction `json:"transactions"`
	}
	decode(t, w, &p)
	if len(p.Transactions) != 1 || p.Transactions[0].Kind != ledger.KindStoredPool {
		t.Errorf("pending = %+v", p)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/settlements", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if w.Code >= 300 {
		t.Errorf("preflight status = %d", w.Code)
	}
}

func TestBlockStream(t *testing.T) {
	// Websocket goroutines may outlive the test, so they must not log to t.
	f := newFixtureWithLogger(t, zap.NewNop())
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/blocks"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.stream.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.ledger.AppendPending(ledger.StoredInPool("House_1", 2))
	committed := f.ledger.Commit(nil)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var info models.BlockInfo
	if err := conn.ReadJSON(&info); err != nil {
		t.Fatalf("read: %v", err)
	}
	if info.Index != committed.Index || info.Hash != committed.Hash {
		t.Errorf("streamed %+v, committed %d/%s", info, committed.Index, committed.Hash)
	}
}
