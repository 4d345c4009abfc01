package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/roach88/posscan/internal/catalog"
)

// fakeBackend is an in-process shop backend with rotating tokens.
type fakeBackend struct {
	mu            sync.Mutex
	access        string
	refresh       string
	refreshes     int
	requests      map[string]int
	rejectRefresh bool
	refreshStatus int // non-zero: /auth/refresh fails with this status
	products      []catalog.Product

	// When set, /auth/refresh signals refreshStarted and then blocks until
	// refreshGate is closed.
	refreshStarted chan struct{}
	refreshGate    chan struct{}

	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		access:   "access-0",
		refresh:  "refresh-0",
		requests: make(map[string]int),
		products: []catalog.Product{
			{ID: "p1", Name: "Phone", SKU: "PH-100", Barcode: "8901030911", Stock: 5},
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/auth/refresh", b.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/login", b.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/logout", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	})).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{
			"user": map[string]any{"id": "u1", "username": "cashier", "role": "cashier"},
		}})
	})).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/products", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		products := b.products
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{"products": products}})
	})).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/categories", b.authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tree") != "true" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "fail", "message": "tree required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{
			"categories": []catalog.Category{{ID: "c1", Name: "Phones", Subcategories: []catalog.Category{{ID: "c1a", Name: "Android"}}}},
		}})
	})).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/broken", b.authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "{not json")
	})).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/forbidden", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"status": "fail", "message": "no permission"})
	})).Methods(http.MethodGet)

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) url() string {
	return b.server.URL + "/api/v1"
}

func (b *fakeBackend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[path]
}

func (b *fakeBackend) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

// rotate invalidates the current access token, as if it expired server-side.
func (b *fakeBackend) rotate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = "revoked-" + b.access
}

func (b *fakeBackend) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests[r.URL.Path]++
		ok := r.Header.Get("Authorization") == "Bearer "+b.access
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "fail", "message": "invalid token"})
			return
		}
		h(w, r)
	}
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if b.refreshStarted != nil {
		b.refreshStarted <- struct{}{}
		<-b.refreshGate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshes++
	if b.refreshStatus != 0 {
		writeJSON(w, b.refreshStatus, map[string]any{"status": "error", "message": "upstream unavailable"})
		return
	}
	if b.rejectRefresh || req.RefreshToken != b.refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "fail", "message": "invalid refresh token"})
		return
	}
	b.access = fmt.Sprintf("access-%d", b.refreshes)
	b.refresh = fmt.Sprintf("refresh-%d", b.refreshes)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]string{
		"accessToken": b.access, "refreshToken": b.refresh,
	}})
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Username != "cashier" || req.Password != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "fail", "message": "Invalid credentials"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{
		"accessToken": b.access, "refreshToken": b.refresh,
		"user": map[string]string{"id": "u1", "username": "cashier"},
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
