package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/imHansiy/mediadex/internal/httputil"
	"github.com/imHansiy/mediadex/internal/scanner"
)

func TestHandleHealth(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Status string            `json:"status"`
		Data   map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Data["status"] != "ok" {
		t.Errorf("body = %s, want ok envelope", rec.Body.String())
	}
}

func TestHandleListPresets(t *testing.T) {
	s := &Server{registry: scanner.NewRegistry()}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/presets", nil)
	rec := httptest.NewRecorder()

	s.handleListPresets(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Data struct {
			Presets []presetInfo `json:"presets"`
			Count   int          `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Count != 4 {
		t.Fatalf("count = %d, want 4 built-in presets", resp.Data.Count)
	}

	seen := make(map[string]presetInfo, len(resp.Data.Presets))
	for _, p := range resp.Data.Presets {
		seen[p.Name] = p
	}
	for _, name := range []string{"default", "chinese", "strict", "loose"} {
		if _, ok := seen[name]; !ok {
			t.Errorf("preset %q missing from listing", name)
		}
	}
	if !seen["loose"].LooseFolders {
		t.Error("loose preset should report loose_folders = true")
	}
	if seen["default"].SeasonEpisodeRules == 0 {
		t.Error("default preset should report season+episode rules")
	}
}

func TestHandleListCatalogRejectsBadMediaType(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog?media_type=music", nil)
	rec := httptest.NewRecorder()

	s.handleListCatalog(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var resp httputil.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != "INVALID_PARAMS" {
		t.Errorf("error = %+v, want INVALID_PARAMS", resp.Error)
	}
}

func TestHandleGetScanRunRejectsBadID(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scan/runs/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	s.handleGetScanRun(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleUpdateSettingsRejectsEmpty(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	s.handleUpdateSettings(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var resp httputil.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != "INVALID_PARAMS" {
		t.Errorf("error = %+v, want INVALID_PARAMS", resp.Error)
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		fallback int
		want     int
	}{
		{"missing key", "/runs", 20, 20},
		{"valid value", "/runs?limit=5", 20, 5},
		{"zero kept", "/runs?limit=0", 20, 0},
		{"negative rejected", "/runs?limit=-3", 20, 20},
		{"garbage rejected", "/runs?limit=abc", 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if got := queryInt(req, "limit", tt.fallback); got != tt.want {
				t.Errorf("queryInt(%q) = %d, want %d", tt.url, got, tt.want)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	reached := false
	h := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/catalog", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if reached {
		t.Error("preflight should not reach the next handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the request origin", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}
