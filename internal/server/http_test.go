package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"OptionLedger/internal/engine"
	"OptionLedger/internal/ledger"
	"OptionLedger/internal/pool"
	"OptionLedger/internal/query"
	"OptionLedger/internal/server"
)

// newTestServer builds a server over a seeded registry with no Postgres
// query service behind it.
func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	registry := pool.NewRegistry()
	p, err := registry.Create("USDC", "admin")
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	meta := ledger.BatchMeta{CommandRef: "seed", Sequence: 1, Timestamp: 1000000}
	if _, err := p.LiquidityDeposit(meta, "lp1", 1000); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	requests := make(chan engine.Request, 8)
	return server.New(server.Config{
		Requests: requests,
		Facade:   query.NewFacade(registry),
		Log:      zerolog.Nop(),
	})
}

func TestPoolStatusLiveRead(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pools/USDC/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["available"] != float64(1000) {
		t.Errorf("available: got %v, want 1000", body["available"])
	}
	if body["asset"] != "USDC" {
		t.Errorf("asset: got %v, want USDC", body["asset"])
	}
}

func TestPoolStatusUnknownAsset(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pools/WETH/status", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown pool, got %d", rec.Code)
	}
}

// The projection-backed variants route to the SQL query service; without
// one configured they must answer 501 instead of falling back silently.
func TestProjectionSourceRouting(t *testing.T) {
	srv := newTestServer(t)

	paths := []string{
		"/v1/pools/USDC/status?source=projection",
		"/v1/pools/USDC/users/alice/balance?source=projection",
	}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("%s: expected 501 without query service, got %d", path, rec.Code)
		}
	}
}

func TestUserBalanceLiveRead(t *testing.T) {
	srv := newTestServer(t)

	// Unknown user on the live path is a 404
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pools/USDC/users/alice/balance", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", rec.Code)
	}
}
