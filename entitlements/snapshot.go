package entitlements

import (
	"fmt"
	"time"
)

// Snapshot is the complete, versioned picture of a user's entitlements at
// one server instant. It replaces any prior snapshot wholesale; nothing in
// the client ever merges two snapshots or mutates one in place.
type Snapshot struct {
	ServerTime   time.Time                    `json:"server_time"`
	Version      int64                        `json:"version"`
	Username     string                       `json:"username"`
	Entitlements map[string]ServerEntitlement `json:"entitlements"`
	TTLSeconds   int64                        `json:"ttl_seconds,omitempty"`
}

// Lookup returns the row for key, if the snapshot carries one.
func (s *Snapshot) Lookup(key Key) (ServerEntitlement, bool) {
	if s == nil || s.Entitlements == nil {
		return ServerEntitlement{}, false
	}
	e, ok := s.Entitlements[key.String()]
	return e, ok
}

// IsOwned reports whether key grants access right now, judged strictly
// against the snapshot's own server_time. Missing rows are not owned.
func (s *Snapshot) IsOwned(key Key) bool {
	e, ok := s.Lookup(key)
	if !ok {
		return false
	}
	return e.AccessibleAt(s.ServerTime)
}

// TTL returns the server's cache-lifetime hint, or 0 when none was given.
func (s *Snapshot) TTL() time.Duration {
	if s == nil || s.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(s.TTLSeconds) * time.Second
}

// Validate checks the invariants a freshly decoded snapshot must hold:
// a nonzero server time, a non-negative version, and a row for every known
// global key so readers never need a default-false fallback.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("nil snapshot")
	}
	if s.ServerTime.IsZero() {
		return fmt.Errorf("snapshot missing server_time")
	}
	if s.Version < 0 {
		return fmt.Errorf("snapshot version %d is negative", s.Version)
	}
	for _, k := range GlobalKeys() {
		if _, ok := s.Entitlements[k.String()]; !ok {
			return fmt.Errorf("snapshot missing row for %s", k)
		}
	}
	return nil
}
