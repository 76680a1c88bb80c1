package profilecache

import (
	"context"
	"errors"
	"testing"
)

func TestRecoveryExhaustionAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.fetcher.set(RawProfile{}, &FetchError{Kind: FetchNotFound, Status: 404})

	if phase := env.r.RecoveryPhase(); phase != RecoveryIdle {
		t.Fatalf("initial phase = %v, want idle", phase)
	}

	ids := IdentifierSet{PatientID: "STALE1", UserID: "42", Email: "ada@example.org"}
	_, err := env.r.Resolve(ctx, ids)
	if !errors.Is(err, ErrRecoveryExhausted) {
		t.Fatalf("expected ErrRecoveryExhausted, got %v", err)
	}
	if phase := env.r.RecoveryPhase(); phase != RecoveryExhausted {
		t.Fatalf("phase = %v, want exhausted", phase)
	}

	// Exactly one redirect for the whole episode.
	if got := env.nav.redirects(); len(got) != 1 || got[0] != "/login" {
		t.Fatalf("redirects = %v, want exactly one /login", got)
	}

	// Each retry dropped the identifier that most likely caused the
	// miss: full set, then uid+email, then email only.
	calls := env.fetcher.callIDs()
	if len(calls) != 3 {
		t.Fatalf("fetch attempts = %d, want 3", len(calls))
	}
	if calls[0] != ids {
		t.Fatalf("attempt 1 ids = %+v", calls[0])
	}
	if want := (IdentifierSet{UserID: "42", Email: "ada@example.org"}); calls[1] != want {
		t.Fatalf("attempt 2 ids = %+v, want %+v", calls[1], want)
	}
	if want := (IdentifierSet{Email: "ada@example.org"}); calls[2] != want {
		t.Fatalf("attempt 3 ids = %+v, want %+v", calls[2], want)
	}
}

// TestRecoveryCounterSurvivesReload drives the counter partway, then
// rebuilds the resolver over the same durable store (a simulated page
// reload). The persisted counter keeps counting instead of restarting,
// which is the whole point of persisting it.
func TestRecoveryCounterSurvivesReload(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	if !env.r.rec.recover(ctx) {
		t.Fatalf("attempt 1 should allow a retry")
	}
	if !env.r.rec.recover(ctx) {
		t.Fatalf("attempt 2 should allow a retry")
	}

	reloaded := newTestEnv(t, func(o *Options) { o.Durable = env.durable })
	if got := reloaded.r.rec.attempts(ctx); got != 2 {
		t.Fatalf("persisted attempts = %d, want 2", got)
	}
	// The third attempt (counting the two before the reload) exhausts.
	if reloaded.r.rec.recover(ctx) {
		t.Fatalf("attempt 3 should exhaust")
	}
	if phase := reloaded.r.RecoveryPhase(); phase != RecoveryExhausted {
		t.Fatalf("phase = %v, want exhausted", phase)
	}
	if got := reloaded.nav.redirects(); len(got) != 1 {
		t.Fatalf("redirects after reload = %v, want one", got)
	}
}

func TestSuccessResetsRecoveryCounter(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	if !env.r.rec.recover(ctx) {
		t.Fatalf("first attempt should allow a retry")
	}
	if got := env.r.rec.attempts(ctx); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}

	// A verified successful resolution zeroes the persisted counter.
	if _, err := env.r.Resolve(ctx, IdentifierSet{PatientID: "AB12C"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if phase := env.r.RecoveryPhase(); phase != RecoveryResolved {
		t.Fatalf("phase = %v, want resolved", phase)
	}
	if got := env.r.rec.attempts(ctx); got != 0 {
		t.Fatalf("attempts after success = %d, want 0", got)
	}
}

// TestRecoverySingleIdentifierRetriesSameSet: with only one identifier
// there is nothing to drop; the budget still bounds the retries.
func TestRecoverySingleIdentifierRetriesSameSet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.fetcher.set(RawProfile{}, &FetchError{Kind: FetchNotFound, Status: 404})

	ids := IdentifierSet{Email: "ada@example.org"}
	if _, err := env.r.Resolve(ctx, ids); !errors.Is(err, ErrRecoveryExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	for i, call := range env.fetcher.callIDs() {
		if call != ids {
			t.Fatalf("attempt %d mutated the identifier set: %+v", i+1, call)
		}
	}
}

// TestExhaustionClearsCachedState: a previously cached profile for a
// different entity does not survive exhaustion.
func TestExhaustionClearsCachedState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	if _, err := env.r.Resolve(ctx, IdentifierSet{PatientID: "AB12C"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	env.fetcher.set(RawProfile{}, &FetchError{Kind: FetchNotFound, Status: 404})
	if _, err := env.r.Resolve(ctx, IdentifierSet{UserID: "7"}); !errors.Is(err, ErrRecoveryExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	if _, ok := env.r.profiles.get(ctx, "pid:AB12C"); ok {
		t.Fatalf("cached identity state survived exhaustion")
	}
}
