package filestore

import (
	"context"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "purchasekit.entitlements.v2"); ok || err != nil {
		t.Fatalf("fresh store Get = (%v, %v)", ok, err)
	}
	if err := s.Set(ctx, "purchasekit.entitlements.v2", `{"version":1}`); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get(ctx, "purchasekit.entitlements.v2")
	if err != nil || !ok || v != `{"version":1}` {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}
	if err := s.Delete(ctx, "purchasekit.entitlements.v2"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "purchasekit.entitlements.v2"); ok {
		t.Error("key survived Delete")
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing key errored: %v", err)
	}
}

func TestEscapedKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	key := "weird/key:with spaces"
	if err := s.Set(ctx, key, "v"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}
}

func TestEmptyDirRejected(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Error("blank directory accepted")
	}
}
