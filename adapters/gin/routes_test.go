package purchasegin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/client"
	"github.com/open-rails/purchasekit/kit"
	memorystore "github.com/open-rails/purchasekit/storage/memory"
	testkit "github.com/open-rails/purchasekit/testing"
)

func newTestRouter(t *testing.T) (*gin.Engine, *testkit.TestBackend) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := testkit.NewTestBackend()
	t.Cleanup(backend.Close)

	cl, err := client.New(client.Config{BaseURL: backend.URL(), Platform: client.PlatformAndroid})
	if err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	k, err := kit.New(cl, memorystore.New(), kit.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(k.Close)
	k.Hydrate(context.Background())

	r := gin.New()
	Register(r, k)
	return r, backend
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestPurchaseRoundTripOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	w, body := do(t, r, http.MethodGet, "/entitlements/PREMIUM_PACK", nil)
	if w.Code != http.StatusOK || body["owned"] != false {
		t.Fatalf("pre-purchase gate: %d %v", w.Code, body)
	}

	w, body = do(t, r, http.MethodPost, "/purchase/start",
		map[string]string{"product_id": "pack_a", "entitlement_key": "PREMIUM_PACK"})
	ik, _ := body["idempotency_key"].(string)
	if w.Code != http.StatusOK || ik == "" {
		t.Fatalf("start: %d %v", w.Code, body)
	}

	// A second start while busy answers 409 without disturbing the flow.
	w, _ = do(t, r, http.MethodPost, "/purchase/start",
		map[string]string{"product_id": "pack_b", "entitlement_key": "REMOVE_ADS"})
	if w.Code != http.StatusConflict {
		t.Fatalf("second start code = %d, want 409", w.Code)
	}

	w, body = do(t, r, http.MethodPost, "/purchase/verify",
		map[string]string{"transaction_id": "txn_1"})
	if w.Code != http.StatusOK || body["state"] != "purchase_verified" {
		t.Fatalf("verify: %d %v", w.Code, body)
	}

	w, body = do(t, r, http.MethodGet, "/entitlements/PREMIUM_PACK", nil)
	if w.Code != http.StatusOK || body["owned"] != true {
		t.Fatalf("post-purchase gate: %d %v", w.Code, body)
	}
}

func TestVerifyFailureRendersOneClassification(t *testing.T) {
	r, backend := newTestRouter(t)

	_, _ = do(t, r, http.MethodPost, "/purchase/start",
		map[string]string{"product_id": "pack_a", "entitlement_key": "PREMIUM_PACK"})

	backend.FailNextVerify(http.StatusUnprocessableEntity, "receipt_invalid")
	w, body := do(t, r, http.MethodPost, "/purchase/verify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify code = %d", w.Code)
	}
	if body["state"] != "failed" || body["error_code"] != "VERIFICATION_FAILED" {
		t.Fatalf("body = %v", body)
	}
	if body["retryable"] != false || body["suggestion"] != "restore_purchases" {
		t.Fatalf("terminal failure should point at restore: %v", body)
	}
}

func TestVerifyWithoutStart(t *testing.T) {
	r, _ := newTestRouter(t)
	w, _ := do(t, r, http.MethodPost, "/purchase/verify", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", w.Code)
	}
}

func TestCancelIsSilentOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	_, _ = do(t, r, http.MethodPost, "/purchase/start",
		map[string]string{"product_id": "pack_a", "entitlement_key": "PREMIUM_PACK"})

	w, body := do(t, r, http.MethodPost, "/purchase/cancel", nil)
	if w.Code != http.StatusOK || body["state"] != "cancelled" {
		t.Fatalf("cancel: %d %v", w.Code, body)
	}
	if _, hasErr := body["error_code"]; hasErr {
		t.Error("cancel carried an error code")
	}

	w, body = do(t, r, http.MethodPost, "/purchase/reset", nil)
	if w.Code != http.StatusOK || body["state"] != "idle" {
		t.Fatalf("reset: %d %v", w.Code, body)
	}
}

func TestRestoreRefreshesFromServer(t *testing.T) {
	r, backend := newTestRouter(t)

	snap := testkit.EmptySnapshot(7, "tester")
	backend.SetSnapshot(snap)

	w, body := do(t, r, http.MethodPost, "/purchase/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore code = %d", w.Code)
	}
	if body["version"] != float64(7) {
		t.Fatalf("restore version = %v, want 7", body["version"])
	}
}
