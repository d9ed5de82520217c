package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcastellin/chatmesh/pkg/registry"
)

func TestHealthzReturnsOK(t *testing.T) {
	engine := NewEngine(registry.New())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestPeersReturnsRegisteredPeers(t *testing.T) {
	reg := registry.New()
	reg.Rank("alice", "127.0.0.1:9001")

	engine := NewEngine(reg)
	req := httptest.NewRequest(http.MethodGet, "/peers", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "alice") {
		t.Fatalf("expected response to mention alice, got %s", rec.Body.String())
	}
}

func TestPeerNotFoundReturns404(t *testing.T) {
	engine := NewEngine(registry.New())
	req := httptest.NewRequest(http.MethodGet, "/peers/ghost", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}
