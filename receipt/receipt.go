// Package receipt extracts display fields from store-signed transaction
// payloads (StoreKit-2-style JWS). Extraction only: the backend performs
// the real signature verification and stays the authority on ownership, so
// nothing here validates signatures.
package receipt

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// SignedTransaction is the subset of a signed transaction payload the
// client cares about: enough to prefill a verification request and render
// a confirmation.
type SignedTransaction struct {
	TransactionID         string
	OriginalTransactionID string
	ProductID             string
	PurchaseDate          time.Time
	ExpiresDate           time.Time
}

// ParseSignedTransaction decodes the claims of a signed transaction JWS
// without verifying its signature.
func ParseSignedTransaction(raw string) (*SignedTransaction, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse signed transaction: %w", err)
	}

	txn := &SignedTransaction{
		TransactionID:         stringClaim(claims, "transactionId"),
		OriginalTransactionID: stringClaim(claims, "originalTransactionId"),
		ProductID:             stringClaim(claims, "productId"),
		PurchaseDate:          msClaim(claims, "purchaseDate"),
		ExpiresDate:           msClaim(claims, "expiresDate"),
	}
	if txn.TransactionID == "" {
		return nil, fmt.Errorf("signed transaction missing transactionId")
	}
	return txn, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

// msClaim reads a millisecond-epoch date claim. JSON numbers arrive as
// float64; absent or malformed claims yield the zero time.
func msClaim(claims jwt.MapClaims, name string) time.Time {
	f, ok := claims[name].(float64)
	if !ok || f <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(f)).UTC()
}
