package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/presale_layer/internal/events"
	"github.com/R3E-Network/presale_layer/internal/httputil"
	"github.com/R3E-Network/presale_layer/internal/ido"
	"github.com/R3E-Network/presale_layer/internal/ledger"
	"github.com/R3E-Network/presale_layer/internal/logging"
	"github.com/R3E-Network/presale_layer/internal/metrics"
	"github.com/R3E-Network/presale_layer/internal/middleware"
	"github.com/R3E-Network/presale_layer/internal/store/memory"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{now: t0}
	log := logging.NewDiscard("test")
	svc := ido.New(memory.New(), log,
		ido.WithClock(func() time.Time { return ts.now }),
		ido.WithEvents(events.NewRingBuffer(100)),
	)
	auth := middleware.NewAuthMiddleware(nil, log, nil, middleware.WithTrustedCallerHeader())
	ts.handler = NewHandler(svc, Options{
		Logger:  log,
		Metrics: metrics.New("test"),
		Auth:    auth,
	})
	return ts
}

func marshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// do sends a request as caller; an empty caller sends no identity.
func (ts *testServer) do(t *testing.T, method, path, caller string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(marshal(t, body)))
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(httputil.CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) must(t *testing.T, want int, method, path, caller string, body interface{}) string {
	t.Helper()
	rec := ts.do(t, method, path, caller, body)
	if rec.Code != want {
		t.Fatalf("%s %s: status = %d, want %d, body = %s", method, path, rec.Code, want, rec.Body.String())
	}
	return rec.Body.String()
}

func (ts *testServer) initialize(t *testing.T) {
	t.Helper()
	ts.must(t, http.StatusCreated, http.MethodPost, "/v1/config", "admin",
		map[string]string{"staking_asset": "STK", "treasury": "treasury"})
}

func (ts *testServer) mint(t *testing.T, asset, holder string, amount uint64) {
	t.Helper()
	ts.must(t, http.StatusOK, http.MethodPost, "/v1/mint", "admin",
		map[string]interface{}{"asset": asset, "holder": holder, "amount": amount})
}

func (ts *testServer) createSale(t *testing.T, supply uint64, vesting bool) string {
	t.Helper()
	ts.mint(t, "TKN", "creator", supply+supply/5)
	body := ts.must(t, http.StatusCreated, http.MethodPost, "/v1/sales", "creator", map[string]interface{}{
		"asset":              "TKN",
		"supply_for_sale":    supply,
		"unit_price":         2,
		"registration_start": t0.Add(time.Hour),
		"registration_end":   t0.Add(2 * time.Hour),
		"sale_start":         t0.Add(3 * time.Hour),
		"sale_end":           t0.Add(4 * time.Hour),
		"listing_price":      4,
		"vesting_enabled":    vesting,
	})
	return gjson.Get(body, "id").String()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	body := ts.must(t, http.StatusOK, http.MethodGet, "/healthz", "", nil)
	if got := gjson.Get(body, "status").String(); got != "ok" {
		t.Errorf("status = %q, want ok", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/healthz", "", nil)
	body := ts.must(t, http.StatusOK, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(body, "test_http_requests_total") {
		t.Errorf("metrics output missing request counter")
	}
}

func TestAPI_RequiresCaller(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/v1/config", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get(middleware.TraceHeader) == "" {
		t.Error("trace header missing")
	}
	if gjson.Get(rec.Body.String(), "trace_id").String() == "" {
		t.Error("trace_id missing from error body")
	}
}

func TestAPI_Config(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/config", "alice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("uninitialized status = %d, want 404", rec.Code)
	}

	ts.initialize(t)
	rec = ts.do(t, http.MethodPost, "/v1/config", "alice", map[string]string{"staking_asset": "STK", "treasury": "t"})
	if rec.Code != http.StatusConflict {
		t.Errorf("second initialize status = %d, want 409", rec.Code)
	}

	rec = ts.do(t, http.MethodPut, "/v1/config/admin", "alice", map[string]string{"admin": "alice"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin update status = %d, want 403", rec.Code)
	}
	if code := gjson.Get(rec.Body.String(), "error.code").String(); code != "Unauthorized" {
		t.Errorf("error.code = %q, want Unauthorized", code)
	}

	body := ts.must(t, http.StatusOK, http.MethodPut, "/v1/config/admin", "admin", map[string]string{"admin": "admin2"})
	if got := gjson.Get(body, "admin").String(); got != "admin2" {
		t.Errorf("admin = %q, want admin2", got)
	}
}

func TestAPI_BadRequests(t *testing.T) {
	ts := newTestServer(t)
	ts.initialize(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown field", http.MethodPost, "/v1/stake", map[string]interface{}{"amount": 1, "tier": 3}, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/v1/sales?status=open", nil, http.StatusBadRequest},
		{"bad event limit", http.MethodGet, "/v1/sales/x/events?limit=-1", nil, http.StatusBadRequest},
		{"zero stake", http.MethodPost, "/v1/stake", map[string]interface{}{"amount": 0}, http.StatusUnprocessableEntity},
		{"missing sale", http.MethodGet, "/v1/sales/nope", nil, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/v1/nothing", nil, http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/v1/config", nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, "alice", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
			if !gjson.Get(rec.Body.String(), "error.code").Exists() {
				t.Errorf("error envelope missing: %s", rec.Body.String())
			}
		})
	}
}

func TestAPI_SaleLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.initialize(t)
	ts.mint(t, ledger.NativeAsset, "alice", 1_000_000)
	ts.mint(t, "STK", "alice", 1_000)
	body := ts.must(t, http.StatusOK, http.MethodPost, "/v1/stake", "alice", map[string]uint64{"amount": 1_000})
	if got := gjson.Get(body, "tier").Int(); got != 1 {
		t.Fatalf("tier = %d, want 1", got)
	}

	id := ts.createSale(t, 10_000, false)
	if id == "" {
		t.Fatal("sale id missing")
	}

	rec := ts.do(t, http.MethodPost, "/v1/sales/"+id+"/approve", "creator", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("creator approve status = %d, want 403", rec.Code)
	}
	body = ts.must(t, http.StatusOK, http.MethodPost, "/v1/sales/"+id+"/approve", "admin", nil)
	if got := gjson.Get(body, "status").String(); got != "approved" {
		t.Errorf("status = %q, want approved", got)
	}

	ts.now = t0.Add(90 * time.Minute)
	ts.must(t, http.StatusCreated, http.MethodPost, "/v1/sales/"+id+"/register", "alice", nil)
	rec = ts.do(t, http.MethodPost, "/v1/sales/"+id+"/register", "alice", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}
	ts.must(t, http.StatusOK, http.MethodPost, "/v1/sales/"+id+"/start", "admin", nil)

	ts.now = t0.Add(3*time.Hour + 30*time.Minute)
	body = ts.must(t, http.StatusOK, http.MethodPost, "/v1/sales/"+id+"/buy", "alice", map[string]uint64{"amount": 100})
	if got := gjson.Get(body, "cost").Uint(); got != 200 {
		t.Errorf("cost = %d, want 200", got)
	}
	if got := gjson.Get(body, "tranches.#").Int(); got != 1 {
		t.Errorf("tranches = %d, want 1", got)
	}

	rec = ts.do(t, http.MethodPost, "/v1/sales/"+id+"/buy", "bob", map[string]uint64{"amount": 1})
	if rec.Code != http.StatusForbidden {
		t.Errorf("unregistered buy status = %d, want 403", rec.Code)
	}

	body = ts.must(t, http.StatusOK, http.MethodGet, "/v1/sales/"+id+"/participants/alice", "bob", nil)
	if got := gjson.Get(body, "purchased").Uint(); got != 100 {
		t.Errorf("purchased = %d, want 100", got)
	}

	ts.now = t0.Add(4 * time.Hour)
	ts.must(t, http.StatusOK, http.MethodPost, "/v1/sales/"+id+"/end", "admin", nil)

	body = ts.must(t, http.StatusOK, http.MethodGet, "/v1/sales/"+id+"/claimable", "alice", nil)
	if got := gjson.Get(body, "due").Uint(); got != 100 {
		t.Errorf("due = %d, want 100", got)
	}

	body = ts.must(t, http.StatusOK, http.MethodPost, "/v1/sales/"+id+"/list", "admin", nil)
	if got := gjson.Get(body, "sale.is_listed").Bool(); !got {
		t.Error("sale not marked listed")
	}
	if got := gjson.Get(body, "listing.proceeds").Uint(); got != 160 {
		t.Errorf("listing.proceeds = %d, want 160", got)
	}

	body = ts.must(t, http.StatusOK, http.MethodPost, "/v1/sales/"+id+"/claim", "alice", nil)
	if got := gjson.Get(body, "total").Uint(); got != 100 {
		t.Errorf("claimed = %d, want 100", got)
	}
	body = ts.must(t, http.StatusOK, http.MethodGet, "/v1/balances/TKN/alice", "alice", nil)
	if got := gjson.Get(body, "balance").Uint(); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}

	body = ts.must(t, http.StatusOK, http.MethodPost, "/v1/sales/"+id+"/withdraw", "creator", nil)
	if got := gjson.Get(body, "withdrawal.protocol_fee").Uint(); got != 20 {
		t.Errorf("withdrawal.protocol_fee = %d, want 20", got)
	}
	if got := gjson.Get(body, "withdrawal.creator_share").Uint(); got != 20 {
		t.Errorf("withdrawal.creator_share = %d, want 20", got)
	}

	body = ts.must(t, http.StatusOK, http.MethodGet, "/v1/sales?status=completed", "alice", nil)
	if got := gjson.Get(body, "#").Int(); got != 1 {
		t.Errorf("completed sales = %d, want 1", got)
	}
	body = ts.must(t, http.StatusOK, http.MethodGet, "/v1/sales?creator=nobody", "alice", nil)
	if body != "[]\n" && body != "[]" {
		t.Errorf("filtered list = %s, want []", body)
	}

	body = ts.must(t, http.StatusOK, http.MethodGet, "/v1/sales/"+id+"/events?limit=100", "alice", nil)
	types := gjson.Get(body, "#.type").Array()
	if len(types) == 0 {
		t.Fatal("no sale events recorded")
	}
	seen := map[string]bool{}
	for _, v := range types {
		seen[v.String()] = true
	}
	for _, want := range []events.EventType{events.EventSaleCreated, events.EventPurchased, events.EventWithdrawn} {
		if !seen[string(want)] {
			t.Errorf("event %s missing from %v", want, types)
		}
	}
}

func TestAPI_Staking(t *testing.T) {
	ts := newTestServer(t)
	ts.initialize(t)

	body := ts.must(t, http.StatusOK, http.MethodGet, "/v1/stake/alice", "alice", nil)
	if got := gjson.Get(body, "amount").Uint(); got != 0 {
		t.Errorf("empty stake amount = %d", got)
	}

	rec := ts.do(t, http.MethodPost, "/v1/stake", "alice", map[string]uint64{"amount": 10})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unfunded stake status = %d, want 422", rec.Code)
	}

	ts.mint(t, "STK", "alice", 20_000)
	ts.must(t, http.StatusOK, http.MethodPost, "/v1/stake", "alice", map[string]uint64{"amount": 20_000})
	body = ts.must(t, http.StatusOK, http.MethodPost, "/v1/unstake", "alice", map[string]uint64{"amount": 15_000})
	if got := gjson.Get(body, "tier").Int(); got != 1 {
		t.Errorf("tier after unstake = %d, want 1", got)
	}
	body = ts.must(t, http.StatusOK, http.MethodGet, "/v1/balances/STK/alice", "bob", nil)
	if got := gjson.Get(body, "balance").Uint(); got != 15_000 {
		t.Errorf("balance = %d, want 15000", got)
	}
}
