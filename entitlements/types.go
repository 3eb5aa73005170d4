package entitlements

import "time"

// Status is the server-reported ownership state of one entitlement row.
type Status string

const (
	StatusOwned       Status = "owned"
	StatusNotOwned    Status = "not_owned"
	StatusExpired     Status = "expired"
	StatusPending     Status = "pending"
	StatusRevoked     Status = "revoked"
	StatusGracePeriod Status = "grace_period"
)

// Reason tags where a grant came from. Provenance only; readers never
// branch on it.
type Reason string

const (
	ReasonPurchase   Reason = "purchase"
	ReasonTrial      Reason = "trial"
	ReasonPromo      Reason = "promo"
	ReasonAdmin      Reason = "admin"
	ReasonRefund     Reason = "refund"
	ReasonChargeback Reason = "chargeback"
	ReasonUnknown    Reason = "unknown"
)

// ServerEntitlement is one row of ownership truth, as issued by the server.
// Timestamps are server clock; the client clock never participates in any
// decision derived from them.
type ServerEntitlement struct {
	Key           string     `json:"key"`
	Status        Status     `json:"status"`
	GrantedAt     *time.Time `json:"granted_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	ProductID     string     `json:"product_id,omitempty"`
	Reason        Reason     `json:"reason,omitempty"`
}

// AccessibleAt reports whether the row grants access relative to the given
// server time. Owned and grace_period rows grant access; an expiry at or
// before serverTime withdraws it regardless of status.
func (e ServerEntitlement) AccessibleAt(serverTime time.Time) bool {
	if e.Status != StatusOwned && e.Status != StatusGracePeriod {
		return false
	}
	if e.ExpiresAt == nil {
		return true
	}
	return e.ExpiresAt.After(serverTime)
}
