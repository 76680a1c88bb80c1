package profilecache

import (
	"context"
	"fmt"
	"time"

	c "github.com/medrec-labs/profilecache/codec"
	"github.com/medrec-labs/profilecache/store"
)

// Resolution is a successful (or stale-served) profile lookup.
type Resolution struct {
	Profile Profile
	Source  Source
	// Stale is set when the entry's age exceeded the TTL and it was
	// served anyway while a background revalidation refreshes it for
	// future callers.
	Stale bool
}

// Resolver is the resolution entry point. It is the only component that
// decides whether to retry, recover, or surface a failure; everything
// below it returns typed results.
type Resolver interface {
	// Resolve returns the profile for whichever identifiers are
	// available. Fresh cache hits return without network I/O; stale
	// hits return immediately with Stale set and revalidate in the
	// background; misses fetch, reconcile, and populate both tiers.
	// Concurrent calls for the same derived key share one fetch.
	Resolve(ctx context.Context, ids IdentifierSet) (Resolution, error)

	// PhotoURL returns the profile photo URL for a patient, ok=false
	// when absent. Lookups are bounded by the photo fetch deadline and
	// degrade to absent on any failure; they never affect profile
	// resolution.
	PhotoURL(ctx context.Context, patientID string) (url string, ok bool)

	// Invalidate evicts the entry derived from ids in both tiers.
	Invalidate(ctx context.Context, ids IdentifierSet) error

	// InvalidateAll clears all cached identity state, including the
	// photo cache. Synchronous and idempotent: once it returns no
	// reader observes pre-invalidation entries. Used on logout and
	// session expiry.
	InvalidateAll(ctx context.Context) error

	// RecoveryPhase exposes the NotFound recovery state machine.
	RecoveryPhase() RecoveryPhase

	Close(ctx context.Context) error
}

// Options tune the resolver. Namespace, Fast, and Fetcher are required;
// others have sensible defaults.
type Options struct {
	// Required
	Namespace string // logical namespace to avoid collisions, e.g. "clinic"
	Fast      store.Store
	Fetcher   ProfileFetcher

	Durable store.Store       // nil => in-process-only caching
	Photos  AttachmentFetcher // nil => PhotoURL always reports absent
	Codec   c.Codec[Profile]  // nil => JSON
	Nav     Navigator         // nil => no-op
	Logger  Logger            // nil => NopLogger
	Hooks   Hooks             // nil => NopHooks
	Clock   Clock             // nil => wall clock

	ProfileTTL       time.Duration // 0 => 30m
	PhotoTTL         time.Duration // 0 => 30m
	PhotoNegativeTTL time.Duration // 0 => 10m
	PhotoTimeout     time.Duration // 0 => 8s
	MaxAttempts      int           // NotFound recovery budget; 0 => 3
	LoginPath        string        // "" => "/login"
	Disabled         bool          // bypass caches (every Resolve fetches)
}

const (
	defaultProfileTTL   = 30 * time.Minute
	defaultPhotoTTL     = 30 * time.Minute
	defaultPhotoNegTTL  = 10 * time.Minute
	defaultPhotoTimeout = 8 * time.Second
	defaultMaxAttempts  = 3
	defaultLoginPath    = "/login"
)

func New(opts Options) (Resolver, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("profilecache: namespace is required")
	}
	if opts.Fast == nil {
		return nil, fmt.Errorf("profilecache: fast store is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("profilecache: fetcher is required")
	}
	return newResolver(opts), nil
}
