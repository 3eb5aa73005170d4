package kit_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/client"
	"github.com/open-rails/purchasekit/entitlements"
	"github.com/open-rails/purchasekit/kit"
	"github.com/open-rails/purchasekit/purchase"
	memorystore "github.com/open-rails/purchasekit/storage/memory"
	testkit "github.com/open-rails/purchasekit/testing"
)

func newKit(t *testing.T, backend *testkit.TestBackend, opts ...kit.Option) *kit.Kit {
	t.Helper()
	cl, err := client.New(client.Config{
		BaseURL:  backend.URL(),
		Platform: client.PlatformIOS,
	})
	if err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	k, err := kit.New(cl, memorystore.New(), append([]kit.Option{kit.WithLogger(log)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(k.Close)
	return k
}

func TestPurchaseEndToEnd(t *testing.T) {
	backend := testkit.NewTestBackend()
	defer backend.Close()
	k := newKit(t, backend)
	ctx := context.Background()

	k.Hydrate(ctx)
	key := entitlements.Global(entitlements.KeyPremiumPack)
	if k.Gate().HasEntitlement(key) {
		t.Fatal("owned before purchase")
	}

	if _, err := k.Flow().Start("pack_a", key); err != nil {
		t.Fatal(err)
	}
	out, err := k.VerifyAndApply(ctx, "txn_1", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.State != purchase.StateVerified {
		t.Fatalf("outcome = %+v", out)
	}
	if !k.Gate().HasEntitlement(key) {
		t.Error("gate does not see the purchase")
	}
}

func TestNetworkFailureThenRetry(t *testing.T) {
	backend := testkit.NewTestBackend()
	defer backend.Close()
	k := newKit(t, backend)
	ctx := context.Background()
	k.Hydrate(ctx)

	key := entitlements.Global(entitlements.KeyRemoveAds)
	if _, err := k.Flow().Start("noads", key); err != nil {
		t.Fatal(err)
	}

	backend.DropNextVerify()
	out, err := k.VerifyAndApply(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.State != purchase.StateFailed || out.ErrorCode != purchase.ErrorCodeNetwork || !out.Retryable {
		t.Fatalf("outcome = %+v, want retryable NETWORK_ERROR", out)
	}

	out, err = k.VerifyAndApply(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.State != purchase.StateVerified {
		t.Fatalf("retry outcome = %+v", out)
	}
	if !k.Gate().HasEntitlement(key) {
		t.Error("entitlement missing after retried verification")
	}
}

func TestDuplicateSubmitNormalizedToSuccess(t *testing.T) {
	backend := testkit.NewTestBackend()
	defer backend.Close()
	k := newKit(t, backend)
	ctx := context.Background()
	k.Hydrate(ctx)

	key := entitlements.Global(entitlements.KeySupporterSub)
	if _, err := k.Flow().Start("sub_m", key); err != nil {
		t.Fatal(err)
	}

	// First submit lands server-side but the response is lost; the retry
	// hits the backend's idempotency guard and comes back as a conflict.
	backend.ProcessAndDropNextVerify()
	out, err := k.VerifyAndApply(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.ErrorCode != purchase.ErrorCodeNetwork {
		t.Fatalf("lost response outcome = %+v", out)
	}

	out, err = k.VerifyAndApply(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.State != purchase.StateVerified {
		t.Fatalf("conflict retry outcome = %+v", out)
	}
	if !k.Gate().HasEntitlement(key) {
		t.Error("entitlement missing after conflict-as-success refresh")
	}
}

func TestVerifiedAutoResets(t *testing.T) {
	backend := testkit.NewTestBackend()
	defer backend.Close()
	k := newKit(t, backend, kit.WithResetDelay(10*time.Millisecond))
	ctx := context.Background()
	k.Hydrate(ctx)

	if _, err := k.Flow().Start("pack_a", entitlements.Global(entitlements.KeyPremiumPack)); err != nil {
		t.Fatal(err)
	}
	if _, err := k.VerifyAndApply(ctx, "txn_1", ""); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for k.Flow().State() != purchase.StateIdle {
		if time.Now().After(deadline) {
			t.Fatalf("flow stuck in %s", k.Flow().State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestColdStartSeesPersistedEntitlements(t *testing.T) {
	backend := testkit.NewTestBackend()
	defer backend.Close()
	store := memorystore.New()

	cl, err := client.New(client.Config{BaseURL: backend.URL(), Platform: client.PlatformIOS})
	if err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	k, err := kit.New(cl, store, kit.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	k.Hydrate(ctx)

	key := entitlements.Global(entitlements.KeyPremiumPack)
	if _, err := k.Flow().Start("pack_a", key); err != nil {
		t.Fatal(err)
	}
	if _, err := k.VerifyAndApply(ctx, "txn_1", ""); err != nil {
		t.Fatal(err)
	}
	k.Close()

	// Same store, new process: the last snapshot is there before any
	// network round trip.
	k2, err := kit.New(cl, store, kit.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	defer k2.Close()
	k2.Hydrate(ctx)
	if !k2.Gate().HasEntitlement(key) {
		t.Error("cold start lost persisted entitlement")
	}
}
