package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeProvider struct {
	data map[string]int
}

func (f fakeProvider) Snapshot() any { return f.data }

func TestHandleSnapshotReturnsProviderData(t *testing.T) {
	s := NewServer(0, fakeProvider{data: map[string]int{"bars_processed": 42}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["bars_processed"] != 42 {
		t.Fatalf("expected bars_processed 42, got %d", body["bars_processed"])
	}
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s := NewServer(0, fakeProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
