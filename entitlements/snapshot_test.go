package entitlements

import (
	"testing"
	"time"
)

func serverNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func snapshotWith(rows map[string]ServerEntitlement) *Snapshot {
	ents := map[string]ServerEntitlement{}
	for _, k := range GlobalKeys() {
		ents[k.String()] = ServerEntitlement{Key: k.String(), Status: StatusNotOwned}
	}
	for k, v := range rows {
		ents[k] = v
	}
	return &Snapshot{ServerTime: serverNow(), Version: 1, Username: "ash", Entitlements: ents}
}

func TestIsOwnedNoExpiry(t *testing.T) {
	s := snapshotWith(map[string]ServerEntitlement{
		"PREMIUM_PACK": {Key: "PREMIUM_PACK", Status: StatusOwned},
	})
	if !s.IsOwned(Global(KeyPremiumPack)) {
		t.Error("owned row without expiry should be owned")
	}
}

func TestIsOwnedExpiredAgainstServerTime(t *testing.T) {
	past := serverNow().Add(-time.Hour)
	future := serverNow().Add(time.Hour)

	s := snapshotWith(map[string]ServerEntitlement{
		"PREMIUM_PACK":  {Key: "PREMIUM_PACK", Status: StatusOwned, ExpiresAt: &past},
		"SUPPORTER_SUB": {Key: "SUPPORTER_SUB", Status: StatusOwned, ExpiresAt: &future},
	})
	if s.IsOwned(Global(KeyPremiumPack)) {
		t.Error("owned row expired before server_time should not be owned")
	}
	if !s.IsOwned(Global(KeySupporterSub)) {
		t.Error("owned row expiring after server_time should be owned")
	}
}

func TestIsOwnedGracePeriod(t *testing.T) {
	s := snapshotWith(map[string]ServerEntitlement{
		"SUPPORTER_SUB": {Key: "SUPPORTER_SUB", Status: StatusGracePeriod},
	})
	if !s.IsOwned(Global(KeySupporterSub)) {
		t.Error("grace_period should still grant access")
	}
}

func TestIsOwnedNonOwningStatuses(t *testing.T) {
	for _, st := range []Status{StatusNotOwned, StatusExpired, StatusPending, StatusRevoked} {
		s := snapshotWith(map[string]ServerEntitlement{
			"PREMIUM_PACK": {Key: "PREMIUM_PACK", Status: st},
		})
		if s.IsOwned(Global(KeyPremiumPack)) {
			t.Errorf("status %s should not grant access", st)
		}
	}
}

func TestIsOwnedMissingRow(t *testing.T) {
	s := snapshotWith(nil)
	if s.IsOwned(ItemUnlock("hero_001")) {
		t.Error("missing row should not be owned")
	}
}

func TestIsOwnedNilSnapshot(t *testing.T) {
	var s *Snapshot
	if s.IsOwned(Global(KeyRemoveAds)) {
		t.Error("nil snapshot should own nothing")
	}
}

func TestValidate(t *testing.T) {
	if err := snapshotWith(nil).Validate(); err != nil {
		t.Errorf("complete snapshot invalid: %v", err)
	}

	missing := snapshotWith(nil)
	delete(missing.Entitlements, "REMOVE_ADS")
	if err := missing.Validate(); err == nil {
		t.Error("snapshot missing a global key should be invalid")
	}

	zeroTime := snapshotWith(nil)
	zeroTime.ServerTime = time.Time{}
	if err := zeroTime.Validate(); err == nil {
		t.Error("snapshot without server_time should be invalid")
	}
}

func TestTTL(t *testing.T) {
	s := snapshotWith(nil)
	if s.TTL() != 0 {
		t.Error("absent hint should yield zero TTL")
	}
	s.TTLSeconds = 300
	if s.TTL() != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", s.TTL())
	}
}
