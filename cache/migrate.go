package cache

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/open-rails/purchasekit/entitlements"
)

// Legacy payload shape: {"entitlements": {"<old key>": <owned bool>}}.
// The old client persisted bare booleans under pre-rename key names and a
// different scoped prefix.
type legacyPayload struct {
	Entitlements map[string]bool `json:"entitlements"`
}

const legacyScopedPrefix = "EXTRA_CONTENT_"

var legacyKeyRenames = map[string]string{
	"premium":   entitlements.KeyPremiumPack,
	"supporter": entitlements.KeySupporterSub,
	"no_ads":    entitlements.KeyRemoveAds,
}

// migrateLegacyKey maps one legacy key name into the current scheme.
// Unrecognized names are carried through unchanged rather than dropped.
func migrateLegacyKey(old string) entitlements.Key {
	if item, ok := strings.CutPrefix(old, legacyScopedPrefix); ok && item != "" {
		return entitlements.ItemUnlock(item)
	}
	if renamed, ok := legacyKeyRenames[old]; ok {
		return entitlements.Global(renamed)
	}
	return entitlements.ParseKey(old)
}

// migrateLegacy reads the legacy storage key, transforms the payload
// key-by-key into a synthetic version-0 snapshot, re-persists it under the
// current key, and clears the legacy key. Returns nil when there is nothing
// to migrate or the payload is unreadable; migration failures are never
// worth blocking startup over.
func (c *Cache) migrateLegacy(ctx context.Context) *entitlements.Snapshot {
	raw, ok, err := c.store.Get(ctx, c.legacyKey)
	if err != nil {
		c.log.WithError(err).Warn("legacy entitlement read failed")
		return nil
	}
	if !ok {
		return nil
	}

	var legacy legacyPayload
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		c.log.WithError(err).Warn("legacy entitlement payload corrupt, discarding")
		c.deleteLegacy(ctx)
		return nil
	}

	rows := make(map[string]entitlements.ServerEntitlement, len(legacy.Entitlements))
	for old, owned := range legacy.Entitlements {
		key := migrateLegacyKey(old)
		status := entitlements.StatusNotOwned
		if owned {
			status = entitlements.StatusOwned
		}
		rows[key.String()] = entitlements.ServerEntitlement{
			Key:    key.String(),
			Status: status,
			Reason: entitlements.ReasonUnknown,
		}
	}

	// Version 0 so the first real server snapshot always supersedes it.
	snap := &entitlements.Snapshot{Version: 0, Entitlements: rows}

	c.persist(ctx, snap)
	c.deleteLegacy(ctx)
	c.log.WithField("rows", len(rows)).Info("migrated legacy entitlement payload")
	return snap
}

func (c *Cache) deleteLegacy(ctx context.Context) {
	if err := c.store.Delete(ctx, c.legacyKey); err != nil {
		c.log.WithError(err).Warn("legacy entitlement delete failed")
	}
}
