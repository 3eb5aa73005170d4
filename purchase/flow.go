// Package purchase implements the single-purchase-at-a-time flow: start,
// verification round trip, retry/cancel/reset, and the retryable-vs-terminal
// error split.
package purchase

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/client"
	"github.com/open-rails/purchasekit/entitlements"
)

// State of the purchase flow.
type State string

const (
	StateIdle      State = "idle"
	StateStarted   State = "purchase_started"
	StatePending   State = "purchase_pending"
	StateVerified  State = "purchase_verified"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// ErrorCode classifies a failed attempt.
type ErrorCode string

const (
	// ErrorCodeNetwork: no response reached us. The purchase may have
	// actually succeeded server-side, so the attempt stays retryable with
	// the same idempotency key.
	ErrorCodeNetwork ErrorCode = "NETWORK_ERROR"
	// ErrorCodeVerification: the server definitively rejected the attempt.
	// Not retryable; the user is pointed at restore-purchases instead.
	ErrorCodeVerification ErrorCode = "VERIFICATION_FAILED"
)

// Caller sequencing bugs. These are the only errors the flow ever returns;
// externally caused failures come back inside an Outcome instead.
var (
	ErrBusy           = errors.New("purchase flow: a purchase is already in flight")
	ErrNoAttempt      = errors.New("purchase flow: no pending purchase attempt")
	ErrNotCancellable = errors.New("purchase flow: nothing to cancel")
	ErrNotResettable  = errors.New("purchase flow: cannot reset while a purchase is in flight")
)

// Attempt is the context of one purchase attempt. It exists exactly while
// the flow is busy or retryable-failed, never otherwise.
type Attempt struct {
	ProductID      string
	EntitlementKey entitlements.Key
	IdempotencyKey string
	Platform       client.Platform
}

// Outcome is the typed result of VerifyAndApply. Exactly one classification
// applies: verified, retryable network failure, or terminal rejection.
type Outcome struct {
	State        State
	ErrorCode    ErrorCode
	ErrorMessage string
	Retryable    bool
}

// Verifier performs the verification round trip. *client.Client satisfies it.
type Verifier interface {
	VerifyPurchase(ctx context.Context, req client.VerifyRequest) (*entitlements.Snapshot, error)
}

// SnapshotSink receives verification results. *cache.Cache satisfies it.
type SnapshotSink interface {
	Apply(ctx context.Context, snap *entitlements.Snapshot) bool
	Refresh(ctx context.Context, reason string) error
}

// Flow is the purchase state machine. One instance per process; all methods
// are safe for concurrent use, though the design assumes a single UI driver.
type Flow struct {
	verifier Verifier
	sink     SnapshotSink
	log      logrus.FieldLogger
	platform client.Platform

	mu        sync.Mutex
	state     State
	attempt   *Attempt
	errCode   ErrorCode
	errMsg    string
	retryable bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger overrides the default logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(f *Flow) { f.log = log }
}

// WithPlatform records the platform stamped onto attempts.
func WithPlatform(p client.Platform) Option {
	return func(f *Flow) { f.platform = p }
}

// New creates an idle flow that verifies through v and lands snapshots in sink.
func New(v Verifier, sink SnapshotSink, opts ...Option) *Flow {
	f := &Flow{
		verifier: v,
		sink:     sink,
		log:      logrus.StandardLogger(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Attempt returns a copy of the pending attempt, if one exists.
func (f *Flow) Attempt() (Attempt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil {
		return Attempt{}, false
	}
	return *f.attempt, true
}

// LastError returns the failure classification of the current failed state.
func (f *Flow) LastError() (ErrorCode, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateFailed {
		return "", "", false
	}
	return f.errCode, f.errMsg, true
}

// Retryable reports whether the current failed state may be retried with
// another VerifyAndApply call.
func (f *Flow) Retryable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == StateFailed && f.retryable
}

// Start begins a new purchase attempt and returns its idempotency key.
// Rejects with ErrBusy, mutating nothing, unless the flow is idle. The key
// is generated once here and reused across every retry of this attempt so
// the server can deduplicate.
func (f *Flow) Start(productID string, key entitlements.Key) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateIdle {
		return "", ErrBusy
	}

	f.attempt = &Attempt{
		ProductID:      productID,
		EntitlementKey: key,
		IdempotencyKey: uuid.NewString(),
		Platform:       f.platform,
	}
	f.state = StateStarted
	f.errCode, f.errMsg, f.retryable = "", "", false

	f.log.WithFields(logrus.Fields{
		"product_id":      productID,
		"entitlement_key": key.String(),
		"idempotency_key": f.attempt.IdempotencyKey,
	}).Debug("purchase started")
	return f.attempt.IdempotencyKey, nil
}

// VerifyAndApply performs the verification round trip for the pending
// attempt and folds the result into the snapshot sink.
//
// Callable from purchase_started (first verification) and from a retryable
// failed state (retry of the same attempt, same idempotency key). Returns
// ErrNoAttempt when no attempt is pending and ErrBusy while a verification
// call is already outstanding; both are caller sequencing bugs.
//
// A conflict answer from the server means a request with this idempotency
// key was already processed. That is assumed to be this same attempt
// succeeding earlier (double tap, retried call that actually landed), so it
// is normalized into success via a follow-up snapshot refresh.
func (f *Flow) VerifyAndApply(ctx context.Context, transactionID, receiptData string) (Outcome, error) {
	f.mu.Lock()
	switch f.state {
	case StatePending:
		f.mu.Unlock()
		return Outcome{}, ErrBusy
	case StateStarted:
	case StateFailed:
		if !f.retryable || f.attempt == nil {
			f.mu.Unlock()
			return Outcome{}, ErrNoAttempt
		}
	default:
		f.mu.Unlock()
		return Outcome{}, ErrNoAttempt
	}
	attempt := *f.attempt
	f.state = StatePending
	f.errCode, f.errMsg, f.retryable = "", "", false
	f.mu.Unlock()

	snap, err := f.verifier.VerifyPurchase(ctx, client.VerifyRequest{
		ProductID:      attempt.ProductID,
		EntitlementKey: attempt.EntitlementKey.String(),
		IdempotencyKey: attempt.IdempotencyKey,
		TransactionID:  transactionID,
		ReceiptData:    receiptData,
	})

	switch {
	case err == nil:
		f.sink.Apply(ctx, snap)
		return f.conclude(StateVerified, "", "", false), nil

	case errors.Is(err, client.ErrConflict):
		// Already processed: success. Refresh is best-effort; even if it
		// fails the server-side purchase stands.
		if rerr := f.sink.Refresh(ctx, "post_purchase_conflict"); rerr != nil {
			f.log.WithError(rerr).Warn("post-conflict entitlement refresh failed")
		}
		return f.conclude(StateVerified, "", "", false), nil

	default:
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			f.log.WithError(err).WithField("idempotency_key", attempt.IdempotencyKey).
				Warn("purchase verification rejected")
			return f.conclude(StateFailed, ErrorCodeVerification, apiErr.Message, false), nil
		}
		f.log.WithError(err).WithField("idempotency_key", attempt.IdempotencyKey).
			Warn("purchase verification unreachable")
		return f.conclude(StateFailed, ErrorCodeNetwork, err.Error(), true), nil
	}
}

// conclude commits the terminal state of one verification round trip.
// The attempt survives only a retryable failure.
func (f *Flow) conclude(state State, code ErrorCode, msg string, retryable bool) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	// A cancel may have raced the round trip. The user's cancel wins the
	// visible state; any snapshot already applied stays applied.
	if f.state != StatePending {
		return Outcome{State: f.state}
	}

	f.state = state
	f.errCode, f.errMsg, f.retryable = code, msg, retryable
	if !(state == StateFailed && retryable) {
		f.attempt = nil
	}
	f.log.WithField("state", string(state)).Debug("purchase verification concluded")
	return Outcome{State: state, ErrorCode: code, ErrorMessage: msg, Retryable: retryable}
}

// Cancel aborts the in-flight attempt. Silent by design: cancellation is a
// user decision, not an error, so no error code or message is recorded and
// nothing should be surfaced to the user. Note this only abandons the
// client-side bookkeeping; a payment already submitted to the platform's
// store cannot be recalled from here.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateStarted && f.state != StatePending {
		return ErrNotCancellable
	}
	f.state = StateCancelled
	f.attempt = nil
	f.errCode, f.errMsg, f.retryable = "", "", false
	f.log.Debug("purchase cancelled")
	return nil
}

// Reset returns the flow to idle from any terminal state (verified, failed,
// cancelled), clearing the attempt and error fields. Resetting an idle flow
// is a no-op. Resetting mid-flight is a sequencing bug.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateIdle:
		return nil
	case StateStarted, StatePending:
		return ErrNotResettable
	}
	f.state = StateIdle
	f.attempt = nil
	f.errCode, f.errMsg, f.retryable = "", "", false
	return nil
}
