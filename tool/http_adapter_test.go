package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestHTTPHandler(t *testing.T, spec TransportSpec) *HTTPHandler {
	t.Helper()
	h, err := NewHTTPHandler("geocode", "run", spec)
	if err != nil {
		t.Fatalf("NewHTTPHandler() error = %v", err)
	}
	t.Cleanup(h.client.CloseIdleConnections)
	return h
}

func TestHTTPHandlerInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("X-Api-Version"); got != "2" {
			t.Errorf("X-Api-Version = %q, want 2", got)
		}
		var req unitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Tool != "geocode" || req.Action != "run" || req.RequestID != "req-1" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"place": req.Params["place"], "lat": 48.85}})
	}))
	defer srv.Close()

	h := newTestHTTPHandler(t, TransportSpec{
		Type:     TransportHTTP,
		Endpoint: srv.URL,
		Headers:  map[string]string{"X-Api-Version": "2"},
	})
	got, err := h.Invoke(WithRequestID(context.Background(), "req-1"), Args{"place": "Paris"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	want := map[string]any{"place": "Paris", "lat": 48.85}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Invoke() mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPHandlerUnitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"kind":"BadParameters","message":"place not found","details":{"place":"Atlantis"}}}`))
	}))
	defer srv.Close()

	h := newTestHTTPHandler(t, TransportSpec{Endpoint: srv.URL})
	_, err := h.Invoke(context.Background(), Args{"place": "Atlantis"})
	toolErr, ok := AsToolError(err)
	if !ok {
		t.Fatalf("Invoke() error = %v, want ToolError", err)
	}
	if toolErr.Kind != KindBadParameters || toolErr.Message != "place not found" {
		t.Fatalf("ToolError = %+v", toolErr)
	}
	if toolErr.Details["place"] != "Atlantis" || toolErr.Details["status"] != http.StatusBadRequest {
		t.Fatalf("details = %v", toolErr.Details)
	}
}

func TestHTTPHandlerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer srv.Close()

	h := newTestHTTPHandler(t, TransportSpec{Endpoint: srv.URL, Retry: RetryPolicy{MaxAttempts: 2}})
	got, err := h.Invoke(context.Background(), Args{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if diff := cmp.Diff([]any{1.0, 2.0, 3.0}, got); diff != "" {
		t.Fatalf("Invoke() mismatch (-want +got):\n%s", diff)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPHandlerStatusErrorWithoutRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "downstream failure", http.StatusBadGateway)
	}))
	defer srv.Close()

	h := newTestHTTPHandler(t, TransportSpec{Endpoint: srv.URL})
	_, err := h.Invoke(context.Background(), Args{})
	toolErr, ok := AsToolError(err)
	if !ok || toolErr.Kind != KindToolExecution {
		t.Fatalf("Invoke() error = %v, want ToolExecutionError", err)
	}
	if toolErr.Details["attempts"] != 1 {
		t.Fatalf("details.attempts = %v, want 1", toolErr.Details["attempts"])
	}
}

func TestNewHTTPHandlerRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPHandler("geocode", "", TransportSpec{Endpoint: "  "}); err == nil {
		t.Fatal("NewHTTPHandler() error = nil, want non-nil")
	}
}

func TestDecodeUnitResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    any
		wantErr ErrorKind
	}{
		{name: "empty", body: "  ", want: nil},
		{name: "result", body: `{"result":"ok"}`, want: "ok"},
		{name: "bare object", body: `{"temp":1}`, want: map[string]any{"temp": 1.0}},
		{name: "string error", body: `{"error":"boom"}`, wantErr: KindToolExecution},
		{name: "malformed", body: `{bad`, wantErr: KindToolExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeUnitResponse([]byte(tt.body))
			if tt.wantErr != "" {
				if KindOf(err, "") != tt.wantErr {
					t.Fatalf("decodeUnitResponse() error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeUnitResponse() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("decodeUnitResponse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
