// Package cache holds the client's single source of truth for "what does
// the current user own": the latest server-issued entitlement snapshot,
// persisted through a storage.Store so cold starts have a last-known state
// before the first network round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/entitlements"
	"github.com/open-rails/purchasekit/storage"
)

// Default storage keys. The key name carries the schema version so Hydrate
// can tell a current payload from a legacy one.
const (
	DefaultStorageKey       = "purchasekit.entitlements.v2"
	DefaultLegacyStorageKey = "purchasekit.entitlements"
)

// ErrNoFetcher is returned by Refresh when the cache was built without one.
var ErrNoFetcher = errors.New("cache: no snapshot fetcher configured")

// Fetcher retrieves a fresh snapshot from the entitlement endpoint.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (*entitlements.Snapshot, error)
}

// Cache is the in-memory + persisted snapshot holder. Construct one per
// process (or per test) with New; there is no ambient instance.
//
// All mutation is a full-value snapshot swap, so readers never observe a
// partially applied update. Storage failures are logged and swallowed:
// persistence is best-effort and must never block gating reads.
type Cache struct {
	store     storage.Store
	fetcher   Fetcher
	log       logrus.FieldLogger
	key       string
	legacyKey string

	mu       sync.RWMutex
	snap     *entitlements.Snapshot
	hydrated bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetcher wires the network source used by Refresh.
func WithFetcher(f Fetcher) Option {
	return func(c *Cache) { c.fetcher = f }
}

// WithLogger overrides the default logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Cache) { c.log = log }
}

// WithStorageKeys overrides the persisted key names. Tests mostly.
func WithStorageKeys(current, legacy string) Option {
	return func(c *Cache) {
		c.key = current
		c.legacyKey = legacy
	}
}

// New creates a cache over the given store. The cache starts empty and
// unhydrated; call Hydrate before trusting any read.
func New(store storage.Store, opts ...Option) *Cache {
	c := &Cache{
		store:     store,
		log:       logrus.StandardLogger(),
		key:       DefaultStorageKey,
		legacyKey: DefaultLegacyStorageKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hydrate loads the last-persisted snapshot into memory. Legacy payloads
// are migrated to the current scheme, re-persisted under the current key,
// and the legacy key is cleared. Hydrate never fails: any storage or decode
// problem leaves the cache empty, logged, and still marks hydration done so
// callers are not blocked waiting on state that will never arrive.
func (c *Cache) Hydrate(ctx context.Context) {
	snap := c.loadStored(ctx)

	c.mu.Lock()
	if snap != nil && (c.snap == nil || snap.Version >= c.snap.Version) {
		c.snap = snap
	}
	c.hydrated = true
	c.mu.Unlock()
}

func (c *Cache) loadStored(ctx context.Context) *entitlements.Snapshot {
	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		c.log.WithError(err).WithField("key", c.key).Warn("entitlement hydrate read failed")
		return nil
	}
	if ok {
		var snap entitlements.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			c.log.WithError(err).Warn("entitlement hydrate payload corrupt, discarding")
			return nil
		}
		return &snap
	}
	return c.migrateLegacy(ctx)
}

// Hydrated reports whether Hydrate has run. Gating answers before this are
// conservative, not authoritative.
func (c *Cache) Hydrated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hydrated
}

// Apply replaces the held snapshot, but only if snap.Version is at least
// the current version, so an older in-flight response landing late can
// never supersede newer data. Reports whether the snapshot was applied.
// The applied snapshot is persisted through to storage; a persist failure
// is logged and does not undo the in-memory apply.
func (c *Cache) Apply(ctx context.Context, snap *entitlements.Snapshot) bool {
	if snap == nil {
		return false
	}

	c.mu.Lock()
	if c.snap != nil && snap.Version < c.snap.Version {
		held := c.snap.Version
		c.mu.Unlock()
		c.log.WithFields(logrus.Fields{"held": held, "offered": snap.Version}).
			Debug("stale entitlement snapshot ignored")
		return false
	}
	c.snap = snap
	c.mu.Unlock()

	c.persist(ctx, snap)
	return true
}

func (c *Cache) persist(ctx context.Context, snap *entitlements.Snapshot) {
	b, err := json.Marshal(snap)
	if err != nil {
		c.log.WithError(err).Warn("entitlement snapshot encode failed")
		return
	}
	if err := c.store.Set(ctx, c.key, string(b)); err != nil {
		c.log.WithError(err).Warn("entitlement snapshot persist failed")
	}
}

// Snapshot returns the currently held snapshot, or nil. The returned value
// must be treated as immutable.
func (c *Cache) Snapshot() *entitlements.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Version returns the held snapshot version, or -1 when empty.
func (c *Cache) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return -1
	}
	return c.snap.Version
}

// IsOwned answers the ownership question for key against the held snapshot
// and its server time. Empty or unhydrated caches answer false.
func (c *Cache) IsOwned(key entitlements.Key) bool {
	return c.Snapshot().IsOwned(key)
}

// Refresh fetches a fresh snapshot and applies it. reason is an opaque
// observability tag ("manual", "post_purchase", "scheduled", ...) with no
// behavioral effect. Refresh is best-effort by contract: callers may
// discard the returned error, and many do.
func (c *Cache) Refresh(ctx context.Context, reason string) error {
	if c.fetcher == nil {
		return ErrNoFetcher
	}
	snap, err := c.fetcher.FetchSnapshot(ctx)
	if err != nil {
		c.log.WithError(err).WithField("reason", reason).Warn("entitlement refresh failed")
		return fmt.Errorf("refresh (%s): %w", reason, err)
	}
	c.Apply(ctx, snap)
	return nil
}
