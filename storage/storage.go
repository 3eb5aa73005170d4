// Package storage defines the device-local persistence boundary: a plain
// string-key/string-value store. Hosts pick the implementation that matches
// their sandbox (in-memory, file directory, redis); all of them behave
// identically from the cache's point of view.
package storage

import "context"

// Store is durable string-keyed storage. Get reports (value, found, error);
// a missing key is (found == false) with a nil error, never an error.
// Implementations return errors normally; the layers above decide whether a
// failure is fatal (for the entitlement cache it never is).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
