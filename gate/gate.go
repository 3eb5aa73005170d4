// Package gate answers "can the current user do X" without leaking
// snapshot internals to callers. Every check reads through to the current
// snapshot, so answers are always recomputed after an apply; nothing here
// caches a boolean.
package gate

import (
	"github.com/open-rails/purchasekit/entitlements"
)

// SnapshotSource provides the current snapshot. *cache.Cache satisfies it.
// A nil snapshot (empty or not-yet-hydrated cache) yields conservative
// not-entitled answers rather than errors.
type SnapshotSource interface {
	Snapshot() *entitlements.Snapshot
}

// Decision is the caller's answer to a blocked access attempt.
type Decision string

const (
	DecisionCancel   Decision = "cancel"
	DecisionPurchase Decision = "purchase"
)

// PromptFunc surfaces the blocking proceed-to-purchase-or-cancel choice to
// the user. How it is rendered is the host's business.
type PromptFunc func(key entitlements.Key) Decision

// Checker is the read-only gating layer.
type Checker struct {
	src SnapshotSource
}

// New creates a Checker over src.
func New(src SnapshotSource) *Checker {
	return &Checker{src: src}
}

// HasEntitlement reports whether key grants access under the current
// snapshot's server time. Missing keys and empty caches are false.
func (c *Checker) HasEntitlement(key entitlements.Key) bool {
	return c.src.Snapshot().IsOwned(key)
}

// RequireEntitlement checks key and, when access is denied, surfaces the
// blocking choice through prompt. Returns (true, "") when access is
// granted; otherwise (false, decision), where a nil prompt decides cancel.
func (c *Checker) RequireEntitlement(key entitlements.Key, prompt PromptFunc) (bool, Decision) {
	if c.HasEntitlement(key) {
		return true, ""
	}
	if prompt == nil {
		return false, DecisionCancel
	}
	return false, prompt(key)
}

// HasItemAccess reports whether the user may access one unlockable item:
// either they own the global pack covering everything, or they bought the
// item individually.
func (c *Checker) HasItemAccess(pack entitlements.Key, itemID string) bool {
	return c.HasEntitlement(pack) || c.HasEntitlement(entitlements.ItemUnlock(itemID))
}

// HasPremiumContent is the product-specific composition most screens ask
// for: the premium pack, or an individual unlock of the given item.
func (c *Checker) HasPremiumContent(itemID string) bool {
	return c.HasItemAccess(entitlements.Global(entitlements.KeyPremiumPack), itemID)
}
