package profilecache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The resolver calls them on hot paths; wrap with hooks/async if the
// sink can block.
type Hooks interface {
	// A cached entry was deleted on read.
	// reason ∈ {"corrupt", "epoch_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A stale entry was returned to a caller while revalidation runs.
	StaleServed(key string, age time.Duration)

	// A background revalidation was started / failed for a key.
	RevalidateStarted(key string)
	RevalidateFailed(key string, err error)

	// The response disagreed with the cached patient ID; kept won.
	IdentifierConflict(key, kept, rejected string)

	// Response carried no structurally valid patient ID anywhere.
	InvariantViolation(key string)

	// NotFound recovery progressed (attempt is the persisted counter
	// after the bump) or gave up.
	RecoveryAttempt(attempt, max int)
	RecoveryExhausted()

	// An attachment lookup was answered by the negative sentinel.
	NegativePhotoHit(patientID string)

	// A store rejected a write (backpressure/eviction). durable tells
	// which tier.
	StoreSetRejected(storageKey string, durable bool)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)                   {}
func (NopHooks) StaleServed(string, time.Duration)         {}
func (NopHooks) RevalidateStarted(string)                  {}
func (NopHooks) RevalidateFailed(string, error)            {}
func (NopHooks) IdentifierConflict(string, string, string) {}
func (NopHooks) InvariantViolation(string)                 {}
func (NopHooks) RecoveryAttempt(int, int)                  {}
func (NopHooks) RecoveryExhausted()                        {}
func (NopHooks) NegativePhotoHit(string)                   {}
func (NopHooks) StoreSetRejected(string, bool)             {}
