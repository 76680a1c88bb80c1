package profilecache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/medrec-labs/profilecache/codec"
)

// revalidateBound caps a fire-and-forget background refresh; a looser
// bound than the photo deadline since the profile fetch may walk the
// recovery loop.
const revalidateBound = 30 * time.Second

type resolver struct {
	profiles *tieredCache
	photos   *photoCache

	fetcher      ProfileFetcher
	photoFetcher AttachmentFetcher
	rec          *recoveryController
	nav          Navigator
	loginPath    string

	log   Logger
	hooks Hooks
	clock Clock

	enabled      bool
	photoTimeout time.Duration

	// Per-key in-flight guards: concurrent resolutions for the same key
	// share one outstanding fetch instead of issuing parallel ones.
	sf      singleflight.Group
	photoSF singleflight.Group

	// Per-key revalidation marker: concurrent stale readers trigger at
	// most one background refresh between completions.
	revalMu      sync.Mutex
	revalidating map[string]struct{}
}

func newResolver(opts Options) *resolver {
	log := coalesce[Logger](opts.Logger, NopLogger{})
	hooks := coalesce[Hooks](opts.Hooks, NopHooks{})
	clock := coalesce[Clock](opts.Clock, systemClock{})
	codec := opts.Codec
	if codec == nil {
		codec = c.JSON[Profile]{}
	}

	epochs := newEpochStore(context.Background(), opts.Durable, "meta:"+opts.Namespace+":epoch", log)

	r := &resolver{
		revalidating: make(map[string]struct{}),
		fetcher:      opts.Fetcher,
		photoFetcher: opts.Photos,
		nav:          coalesce[Navigator](opts.Nav, NopNavigator{}),
		loginPath:    coalesce(opts.LoginPath, defaultLoginPath),
		log:          log,
		hooks:        hooks,
		clock:        clock,
		enabled:      !opts.Disabled,
		photoTimeout: coalesce(opts.PhotoTimeout, defaultPhotoTimeout),
	}

	r.profiles = &tieredCache{
		ns:      opts.Namespace,
		fast:    opts.Fast,
		durable: opts.Durable,
		codec:   codec,
		epochs:  epochs,
		ttl:     coalesce(opts.ProfileTTL, defaultProfileTTL),
		clock:   clock,
		log:     log,
		hooks:   hooks,
	}
	r.photos = &photoCache{
		ns:      opts.Namespace,
		fast:    opts.Fast,
		durable: opts.Durable,
		epochs:  epochs,
		posTTL:  coalesce(opts.PhotoTTL, defaultPhotoTTL),
		negTTL:  coalesce(opts.PhotoNegativeTTL, defaultPhotoNegTTL),
		clock:   clock,
		log:     log,
		hooks:   hooks,
	}
	r.rec = &recoveryController{
		durable:   opts.Durable,
		key:       "meta:" + opts.Namespace + ":recovery",
		max:       coalesce(opts.MaxAttempts, defaultMaxAttempts),
		nav:       r.nav,
		loginPath: r.loginPath,
		clearAll:  func(ctx context.Context) { _ = r.InvalidateAll(ctx) },
		log:       log,
		hooks:     hooks,
	}
	return r
}

func (r *resolver) Resolve(ctx context.Context, ids IdentifierSet) (Resolution, error) {
	key, err := ResolveKey(ids)
	if err != nil {
		return Resolution{}, err
	}

	if r.enabled {
		if e, ok := r.profiles.get(ctx, key); ok {
			if r.profiles.fresh(e) {
				return Resolution{Profile: e.profile, Source: e.source}, nil
			}
			// Serve stale now, refresh for future callers.
			r.hooks.StaleServed(key, r.clock.Now().Sub(e.storedAt))
			r.revalidate(key, ids)
			return Resolution{Profile: e.profile, Source: e.source, Stale: true}, nil
		}
	}

	p, err := r.fetchProfile(ctx, key, ids)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Profile: p, Source: SourceFetch}, nil
}

// revalidate refreshes a stale key without blocking the caller. The
// outcome only updates the cache; it never alters a result already
// returned. The per-key marker guarantees concurrent stale readers
// trigger exactly one background fetch, not one each.
func (r *resolver) revalidate(key string, ids IdentifierSet) {
	r.revalMu.Lock()
	if _, busy := r.revalidating[key]; busy {
		r.revalMu.Unlock()
		return
	}
	r.revalidating[key] = struct{}{}
	r.revalMu.Unlock()

	r.hooks.RevalidateStarted(key)
	go func() {
		defer func() {
			r.revalMu.Lock()
			delete(r.revalidating, key)
			r.revalMu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), revalidateBound)
		defer cancel()
		if _, err := r.fetchProfile(ctx, key, ids); err != nil {
			r.hooks.RevalidateFailed(key, err)
			r.log.Debug("background revalidation failed", Fields{"key": key, "err": err})
		}
	}()
}

// fetchProfile de-duplicates concurrent fetches for the same key and
// runs the classified fetch pipeline.
func (r *resolver) fetchProfile(ctx context.Context, key string, ids IdentifierSet) (Profile, error) {
	v, err, _ := r.sf.Do(key, func() (any, error) {
		return r.fetchOnce(ctx, key, ids)
	})
	if err != nil {
		return Profile{}, err
	}
	return v.(Profile), nil
}

// fetchOnce walks the fetch/classify/recover loop for one key:
// Unauthorized clears the session, NotFound consumes the bounded
// recovery budget with a reduced identifier subset per attempt, and
// transient or malformed failures surface to the caller untouched.
func (r *resolver) fetchOnce(ctx context.Context, key string, ids IdentifierSet) (Profile, error) {
	cur := ids
	r.rec.noteFetching()
	for {
		raw, err := r.fetcher.Fetch(ctx, cur)
		if err == nil {
			p, pidSafe := r.reconcile(key, raw, r.priorProfile(ctx, key, raw))
			r.rec.resolve(ctx)
			if r.enabled {
				// A profile without a verified patient ID must never be
				// cached under a pid key: it would answer later pid
				// lookups with an empty identifier for the whole TTL.
				// Weak keys (uid/email) may still cache it.
				if pidSafe || !strings.HasPrefix(key, keyKindPatient+":") {
					if perr := r.profiles.put(ctx, key, p); perr != nil {
						r.log.Warn("cache write failed", Fields{"key": key, "err": perr})
					}
				}
				// Mirror under the canonical pid key so later lookups
				// via any identifier converge on the same record.
				if pidSafe {
					if pk := keyKindPatient + ":" + p.PatientID; pk != key {
						if perr := r.profiles.put(ctx, pk, p); perr != nil {
							r.log.Warn("cache write failed", Fields{"key": pk, "err": perr})
						}
					}
				}
			}
			return p, nil
		}

		switch {
		case IsUnauthorized(err):
			r.clearSession(ctx)
			return Profile{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case IsNotFound(err):
			if !r.rec.recover(ctx) {
				return Profile{}, ErrRecoveryExhausted
			}
			// Drop the identifier that most likely drove the miss and
			// try the weaker subset.
			if reduced, ok := cur.reduce(); ok {
				cur = reduced
			}
		default:
			// ServerError (retryable with identical inputs by the
			// caller) or MalformedResponse; neither consumes the
			// recovery budget.
			return Profile{}, err
		}
	}
}

// priorProfile finds the cached entry the invariant rules should defer
// to: the entry under the derived key, or failing that, the entry under
// the pid key the response claims.
func (r *resolver) priorProfile(ctx context.Context, key string, raw RawProfile) *Profile {
	if !r.enabled {
		return nil
	}
	if e, ok := r.profiles.get(ctx, key); ok {
		return &e.profile
	}
	candidate := raw.PatientID
	if !ValidPatientID(candidate) {
		candidate = raw.MRN
	}
	if ValidPatientID(candidate) {
		if pk := keyKindPatient + ":" + candidate; pk != key {
			if e, ok := r.profiles.get(ctx, pk); ok {
				return &e.profile
			}
		}
	}
	return nil
}

func (r *resolver) clearSession(ctx context.Context) {
	r.log.Warn("session unauthorized; clearing identity state", nil)
	_ = r.InvalidateAll(ctx)
	r.nav.RedirectTo(r.loginPath)
}

func (r *resolver) PhotoURL(ctx context.Context, patientID string) (string, bool) {
	if patientID == "" || r.photoFetcher == nil {
		return "", false
	}
	if r.enabled {
		switch url, st := r.photos.get(ctx, patientID); st {
		case photoHit:
			return url, true
		case photoNegative:
			r.hooks.NegativePhotoHit(patientID)
			return "", false
		}
	}

	type photoResult struct {
		url   string
		found bool
	}
	v, err, _ := r.photoSF.Do(patientID, func() (any, error) {
		fctx, cancel := context.WithTimeout(ctx, r.photoTimeout)
		defer cancel()
		url, found, err := r.photoFetcher.FetchPhoto(fctx, patientID)
		if err != nil {
			return nil, err
		}
		if r.enabled {
			r.photos.put(fctx, patientID, url, !found)
		}
		return photoResult{url: url, found: found}, nil
	})
	if err != nil {
		// Attachment failures degrade to the default placeholder and
		// are never cached; absence is only cached when confirmed.
		r.log.Debug("photo fetch failed", Fields{"patient_id": patientID, "err": err})
		return "", false
	}
	res := v.(photoResult)
	return res.url, res.found
}

func (r *resolver) Invalidate(ctx context.Context, ids IdentifierSet) error {
	key, err := ResolveKey(ids)
	if err != nil {
		return err
	}
	return r.profiles.invalidate(ctx, key)
}

func (r *resolver) InvalidateAll(ctx context.Context) error {
	r.profiles.invalidateAll(ctx) // epoch bump also covers the photo cache
	return nil
}

func (r *resolver) RecoveryPhase() RecoveryPhase { return r.rec.Phase() }

func (r *resolver) Close(ctx context.Context) error {
	var err error
	if r.profiles.fast != nil {
		err = r.profiles.fast.Close(ctx)
	}
	if r.profiles.durable != nil {
		if derr := r.profiles.durable.Close(ctx); err == nil {
			err = derr
		}
	}
	return err
}
