// Package kit wires the purchasekit pieces into one dependency-injected
// container: cache, purchase flow, gating, and the background refresher.
// Hosts build one Kit per process (or per test) and hand it to their UI.
package kit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/cache"
	"github.com/open-rails/purchasekit/client"
	"github.com/open-rails/purchasekit/gate"
	"github.com/open-rails/purchasekit/purchase"
	"github.com/open-rails/purchasekit/refresh"
	"github.com/open-rails/purchasekit/storage"
)

// DefaultResetDelay is how long a verified purchase stays on screen before
// the flow snaps back to idle. UI affordance, not a correctness matter.
const DefaultResetDelay = 3 * time.Second

// Kit aggregates the purchasekit components over one client and one store.
type Kit struct {
	cache      *cache.Cache
	flow       *purchase.Flow
	checker    *gate.Checker
	sched      *refresh.Scheduler
	log        logrus.FieldLogger
	resetDelay time.Duration
}

// Option configures a Kit.
type Option func(*options)

type options struct {
	log        logrus.FieldLogger
	resetDelay time.Duration
	schedule   string
	scheduled  bool
	cacheOpts  []cache.Option
}

// WithLogger overrides the default logrus standard logger everywhere.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithResetDelay overrides the verified-to-idle delay. Tests shrink it.
func WithResetDelay(d time.Duration) Option {
	return func(o *options) { o.resetDelay = d }
}

// WithScheduledRefresh enables the background reconciliation refresher on
// the given cron spec ("" for the default).
func WithScheduledRefresh(spec string) Option {
	return func(o *options) {
		o.schedule = spec
		o.scheduled = true
	}
}

// WithCacheOptions forwards extra options to the cache constructor.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *options) { o.cacheOpts = append(o.cacheOpts, opts...) }
}

// New assembles a Kit from a backend client and a device store.
func New(cl *client.Client, store storage.Store, opts ...Option) (*Kit, error) {
	o := &options{
		log:        logrus.StandardLogger(),
		resetDelay: DefaultResetDelay,
	}
	for _, opt := range opts {
		opt(o)
	}

	cacheOpts := append([]cache.Option{
		cache.WithFetcher(cl),
		cache.WithLogger(o.log),
	}, o.cacheOpts...)
	c := cache.New(store, cacheOpts...)

	k := &Kit{
		cache: c,
		flow: purchase.New(cl, c,
			purchase.WithLogger(o.log),
			purchase.WithPlatform(cl.Platform())),
		checker:    gate.New(c),
		log:        o.log,
		resetDelay: o.resetDelay,
	}

	if o.scheduled {
		sched, err := refresh.New(c, o.schedule, refresh.WithLogger(o.log))
		if err != nil {
			return nil, err
		}
		k.sched = sched
		sched.Start()
	}
	return k, nil
}

// Hydrate loads persisted state; call it before first paint.
func (k *Kit) Hydrate(ctx context.Context) { k.cache.Hydrate(ctx) }

// Close stops background work. The cache and flow need no teardown.
func (k *Kit) Close() {
	if k.sched != nil {
		k.sched.Stop()
	}
}

// Cache returns the entitlement cache.
func (k *Kit) Cache() *cache.Cache { return k.cache }

// Flow returns the purchase flow.
func (k *Kit) Flow() *purchase.Flow { return k.flow }

// Gate returns the gating checker.
func (k *Kit) Gate() *gate.Checker { return k.checker }

// VerifyAndApply runs the flow's verification and, on success, performs
// the post-purchase housekeeping: a best-effort reconciliation refresh
// (the verification response may already be stale against a newer
// server-side change) and a delayed automatic reset back to idle.
func (k *Kit) VerifyAndApply(ctx context.Context, transactionID, receiptData string) (purchase.Outcome, error) {
	out, err := k.flow.VerifyAndApply(ctx, transactionID, receiptData)
	if err != nil {
		return out, err
	}
	if out.State == purchase.StateVerified {
		if rerr := k.cache.Refresh(ctx, "post_purchase"); rerr != nil {
			k.log.WithError(rerr).Debug("post-purchase reconciliation refresh failed")
		}
		time.AfterFunc(k.resetDelay, func() { _ = k.flow.Reset() })
	}
	return out, nil
}
