package profilecache

import (
	"context"
	"strconv"
	"sync"

	"github.com/medrec-labs/profilecache/store"
)

// RecoveryPhase is the observable state of the bounded NotFound
// recovery machine: Idle → Fetching → (Resolved | Recovering →
// (Resolved | Exhausted)).
type RecoveryPhase int

const (
	RecoveryIdle RecoveryPhase = iota
	RecoveryFetching
	RecoveryRecovering
	RecoveryResolved
	RecoveryExhausted
)

func (p RecoveryPhase) String() string {
	switch p {
	case RecoveryIdle:
		return "idle"
	case RecoveryFetching:
		return "fetching"
	case RecoveryRecovering:
		return "recovering"
	case RecoveryResolved:
		return "resolved"
	case RecoveryExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// recoveryController bounds how many NotFound resolutions are attempted
// for one unresolved identity. The attempt counter lives in the durable
// store, because the redirect/retry cycle it guards is expected to span
// process restarts - an in-memory counter would reset on reload and
// reintroduce the infinite loop it exists to prevent.
type recoveryController struct {
	durable   store.Store // may be nil: counter degrades to in-memory
	key       string
	max       int
	nav       Navigator
	loginPath string
	clearAll  func(ctx context.Context)
	log       Logger
	hooks     Hooks

	mu         sync.Mutex
	phase      RecoveryPhase
	mem        int // fallback/shadow of the persisted counter
	redirected bool
}

func (r *recoveryController) Phase() RecoveryPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *recoveryController) noteFetching() {
	r.mu.Lock()
	if r.phase != RecoveryExhausted {
		r.phase = RecoveryFetching
	}
	r.mu.Unlock()
}

// attempts loads the persisted counter; mu must be held.
func (r *recoveryController) attempts(ctx context.Context) int {
	if r.durable == nil {
		return r.mem
	}
	b, ok, err := r.durable.Get(ctx, r.key)
	if err != nil || !ok {
		return r.mem
	}
	n, perr := strconv.Atoi(string(b))
	if perr != nil {
		return r.mem
	}
	return n
}

// recover is called after a NotFound classification. It bumps the
// persisted counter and reports whether the caller should retry with a
// reduced identifier subset. When the budget is spent it clears all
// cached identity state, redirects to the login path exactly once, and
// transitions to Exhausted.
func (r *recoveryController) recover(ctx context.Context) bool {
	r.mu.Lock()
	r.phase = RecoveryRecovering
	n := r.attempts(ctx) + 1
	r.mem = n
	if r.durable != nil {
		if ok, err := r.durable.Set(ctx, r.key, []byte(strconv.Itoa(n)), 0); err != nil || !ok {
			r.log.Warn("recovery counter persist failed", Fields{"attempts": n, "err": err})
		}
	}
	r.mu.Unlock()

	r.hooks.RecoveryAttempt(n, r.max)
	r.log.Info("profile not found; recovery attempt", Fields{"attempt": n, "max": r.max})

	if n < r.max {
		return true
	}

	r.mu.Lock()
	r.phase = RecoveryExhausted
	redirect := !r.redirected
	r.redirected = true
	r.mu.Unlock()

	r.clearAll(ctx)
	r.hooks.RecoveryExhausted()
	r.log.Warn("recovery exhausted; clearing identity state", Fields{"attempts": n})
	if redirect {
		r.nav.RedirectTo(r.loginPath)
	}
	return false
}

// resolve records a verified successful resolution: the counter goes
// back to zero and a later recovery episode may redirect again.
func (r *recoveryController) resolve(ctx context.Context) {
	r.mu.Lock()
	r.phase = RecoveryResolved
	r.mem = 0
	r.redirected = false
	r.mu.Unlock()
	if r.durable != nil {
		if err := r.durable.Del(ctx, r.key); err != nil {
			r.log.Warn("recovery counter reset failed", Fields{"err": err})
		}
	}
}
