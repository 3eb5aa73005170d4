// Package testing provides a mock entitlement backend for testing
// applications that use purchasekit, without needing a real server.
//
// Example usage:
//
//	backend := testing.NewTestBackend()
//	defer backend.Close()
//
//	cl, _ := client.New(client.Config{
//		BaseURL:  backend.URL(),
//		Platform: client.PlatformIOS,
//	})
//
// The backend deduplicates verification requests by idempotency key the
// way the real server does: a repeated key answers with HTTP 409.
package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/open-rails/purchasekit/entitlements"
)

// TestBackend is an httptest server implementing the verification and
// refresh endpoints.
type TestBackend struct {
	server *httptest.Server

	mu         sync.Mutex
	snapshot   *entitlements.Snapshot
	seen       map[string]bool
	failStatus int
	failCode   string
	dropNext   bool
	dropReply  bool
	verifies   int
}

// NewTestBackend starts a backend holding an all-not-owned snapshot at
// version 1 for user "tester".
func NewTestBackend() *TestBackend {
	b := &TestBackend{
		seen:     make(map[string]bool),
		snapshot: EmptySnapshot(1, "tester"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/purchases/verify", b.handleVerify)
	mux.HandleFunc("GET /v1/entitlements", b.handleEntitlements)
	b.server = httptest.NewServer(mux)
	return b
}

// EmptySnapshot builds a snapshot carrying a not_owned row for every known
// global key.
func EmptySnapshot(version int64, username string) *entitlements.Snapshot {
	rows := map[string]entitlements.ServerEntitlement{}
	for _, k := range entitlements.GlobalKeys() {
		rows[k.String()] = entitlements.ServerEntitlement{Key: k.String(), Status: entitlements.StatusNotOwned}
	}
	return &entitlements.Snapshot{
		ServerTime:   time.Now().UTC(),
		Version:      version,
		Username:     username,
		Entitlements: rows,
	}
}

// URL returns the backend's base URL for client.Config.
func (b *TestBackend) URL() string { return b.server.URL }

// Close shuts the server down.
func (b *TestBackend) Close() { b.server.Close() }

// SetSnapshot replaces the snapshot served by refresh and grown by verify.
func (b *TestBackend) SetSnapshot(s *entitlements.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = s
}

// Snapshot returns the backend's current snapshot.
func (b *TestBackend) Snapshot() *entitlements.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot
}

// FailNextVerify makes the next verification answer with the given status
// and error code instead of succeeding.
func (b *TestBackend) FailNextVerify(status int, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStatus, b.failCode = status, code
}

// DropNextVerify makes the next verification die before the request is
// processed: the client sees a transport error and the server kept nothing.
func (b *TestBackend) DropNextVerify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropNext = true
}

// ProcessAndDropNextVerify makes the next verification succeed server-side
// (idempotency key recorded, entitlement granted) but lose the response on
// the way back. This is the ambiguous network failure the conflict guard
// exists for: the retry with the same key answers 409.
func (b *TestBackend) ProcessAndDropNextVerify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropReply = true
}

// VerifyCalls reports how many verification requests reached the backend.
func (b *TestBackend) VerifyCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.verifies
}

type verifyRequest struct {
	ProductID      string `json:"product_id"`
	EntitlementKey string `json:"entitlement_key"`
	IdempotencyKey string `json:"idempotency_key"`
	Platform       string `json:"platform"`
}

func (b *TestBackend) handleVerify(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.verifies++
	if b.dropNext {
		b.dropNext = false
		b.mu.Unlock()
		panic(http.ErrAbortHandler)
	}
	if b.failStatus != 0 {
		status, code := b.failStatus, b.failCode
		b.failStatus, b.failCode = 0, ""
		b.mu.Unlock()
		writeJSON(w, status, map[string]string{"error": code, "message": code})
		return
	}
	b.mu.Unlock()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IdempotencyKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seen[req.IdempotencyKey] {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already_processed"})
		return
	}
	b.seen[req.IdempotencyKey] = true

	b.snapshot = grant(b.snapshot, req.EntitlementKey, req.ProductID)
	if b.dropReply {
		b.dropReply = false
		panic(http.ErrAbortHandler)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"entitlements_snapshot": b.snapshot,
	})
}

func (b *TestBackend) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.snapshot)
}

// grant returns a copy of snap with key owned and the version bumped.
func grant(snap *entitlements.Snapshot, key, productID string) *entitlements.Snapshot {
	rows := make(map[string]entitlements.ServerEntitlement, len(snap.Entitlements)+1)
	for k, v := range snap.Entitlements {
		rows[k] = v
	}
	now := time.Now().UTC()
	rows[key] = entitlements.ServerEntitlement{
		Key:       key,
		Status:    entitlements.StatusOwned,
		GrantedAt: &now,
		ProductID: productID,
		Reason:    entitlements.ReasonPurchase,
	}
	return &entitlements.Snapshot{
		ServerTime:   now,
		Version:      snap.Version + 1,
		Username:     snap.Username,
		Entitlements: rows,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
