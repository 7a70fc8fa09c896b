package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"OpenMCP-Stellar/internal/auth"
	"OpenMCP-Stellar/internal/idempotency"
	"OpenMCP-Stellar/internal/tools"
)

func testRegistry(calls *int32) *tools.Registry {
	r := tools.NewRegistry()
	r.Register("counter", "counts calls", `{"type":"object"}`, func(context.Context, json.RawMessage) (any, error) {
		return map[string]int32{"calls": atomic.AddInt32(calls, 1)}, nil
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListAndCallTools(t *testing.T) {
	var calls int32
	h := NewServer(":0", testRegistry(&calls)).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/tools", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	var listed struct {
		Tools []tools.Descriptor `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Tools) != 1 || listed.Tools[0].Name != "counter" {
		t.Fatalf("unexpected tools: %+v", listed.Tools)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/tools/counter", `{"action":"tick"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d", rec.Code)
	}
	var result tools.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success || result.Action != "tick" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestUnknownToolAndMethod(t *testing.T) {
	var calls int32
	h := NewServer(":0", testRegistry(&calls)).Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/tools/missing", `{}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/v1/tools", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	var calls int32
	h := NewServer(":0", testRegistry(&calls)).Handler()

	if rec := do(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	do(t, h, http.MethodPost, "/api/v1/tools/counter", `{}`, nil)
	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), "stellarmcp_tool_calls_total") {
		t.Fatalf("metrics output missing tool counter")
	}
}

func TestAuthAndIdempotency(t *testing.T) {
	var calls int32
	svc, err := auth.NewService([]string{"ops:s3cret"})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	h := NewServer(":0", testRegistry(&calls),
		WithAuth(svc),
		WithIdempotency(idempotency.NewMemoryStore(), time.Minute),
	).Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/tools/counter", `{}`, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, rec.Code)
	}

	headers := map[string]string{"Authorization": "Bearer s3cret", idempotency.Header: "order-1"}
	first := do(t, h, http.MethodPost, "/api/v1/tools/counter", `{}`, headers)
	second := do(t, h, http.MethodPost, "/api/v1/tools/counter", `{}`, headers)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("unexpected statuses %d %d", first.Code, second.Code)
	}
	if calls != 1 {
		t.Fatalf("expected one execution, got %d", calls)
	}
	if second.Header().Get(idempotency.ReplayHeader) != "true" {
		t.Fatalf("expected replayed response")
	}

	if rec := do(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz should not require auth, got %d", rec.Code)
	}
}
