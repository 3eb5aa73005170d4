package entitlements

import "strings"

// Global entitlement keys known to the client. A snapshot is expected to
// carry a row for every one of these, even when the user owns nothing.
const (
	KeyPremiumPack  = "PREMIUM_PACK"
	KeySupporterSub = "SUPPORTER_SUB"
	KeyRemoveAds    = "REMOVE_ADS"
)

// ScopedPrefix is the reserved wire prefix for per-item unlock keys.
// Any key starting with this prefix is a scoped key; the remainder of the
// string is the unlocked item's identifier.
const ScopedPrefix = "ITEM_UNLOCK_"

// GlobalKeys returns every enumerable global key, in a stable order.
func GlobalKeys() []Key {
	return []Key{
		Global(KeyPremiumPack),
		Global(KeySupporterSub),
		Global(KeyRemoveAds),
	}
}

// Key identifies a purchasable right. It is either a global key (fixed,
// enumerable name) or a scoped key (reserved prefix plus a dynamic item
// identifier). The wire encoding lives here and nowhere else.
type Key struct {
	name string
	item string
}

// Global returns the key for a fixed entitlement name.
func Global(name string) Key {
	return Key{name: name}
}

// ItemUnlock returns the scoped key for one unlockable item.
func ItemUnlock(itemID string) Key {
	return Key{name: ScopedPrefix, item: itemID}
}

// ParseKey decodes a wire-form key string. Strings carrying the reserved
// scoped prefix become scoped keys; everything else is treated as global.
func ParseKey(s string) Key {
	if item, ok := strings.CutPrefix(s, ScopedPrefix); ok && item != "" {
		return Key{name: ScopedPrefix, item: item}
	}
	return Key{name: s}
}

// String returns the wire form of the key.
func (k Key) String() string {
	return k.name + k.item
}

// IsScoped reports whether the key addresses a single unlockable item.
func (k Key) IsScoped() bool { return k.item != "" }

// ItemID returns the item identifier of a scoped key, or "" for globals.
func (k Key) ItemID() string { return k.item }

// IsZero reports whether the key is the empty value.
func (k Key) IsZero() bool { return k.name == "" && k.item == "" }
