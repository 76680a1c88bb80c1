package profilecache

import (
	"context"
	"time"

	"github.com/medrec-labs/profilecache/codec"
	"github.com/medrec-labs/profilecache/internal/wire"
	"github.com/medrec-labs/profilecache/store"
)

// Source tells callers which layer answered a resolution.
type Source string

const (
	SourceMemory  Source = "memory"  // in-process tier
	SourceDurable Source = "durable" // persistent tier (promoted on read)
	SourceFetch   Source = "fetch"   // profile store round-trip
)

type cacheEntry struct {
	profile  Profile
	storedAt time.Time
	source   Source
}

// tieredCache is the two-tier profile cache: a fast volatile store read
// first and a durable store behind it. Durable hits are promoted into
// the fast tier. Entries carry the epoch and write timestamp in their
// envelope; corrupt, outdated-epoch, or undecodable entries are deleted
// on read (self-heal) and reported as misses.
type tieredCache struct {
	ns      string
	fast    store.Store
	durable store.Store // may be nil: degrade to in-process only
	codec   codec.Codec[Profile]
	epochs  *epochStore
	ttl     time.Duration
	clock   Clock
	log     Logger
	hooks   Hooks
}

func (t *tieredCache) storageKey(key string) string {
	return "profile:" + t.ns + ":" + key
}

// get returns the cached entry for key from either tier, regardless of
// freshness; callers decide between "fresh" and "stale-but-usable".
func (t *tieredCache) get(ctx context.Context, key string) (cacheEntry, bool) {
	k := t.storageKey(key)

	if e, ok := t.read(ctx, t.fast, k); ok {
		e.source = SourceMemory
		return e, true
	}
	if t.durable == nil {
		return cacheEntry{}, false
	}
	e, ok := t.read(ctx, t.durable, k)
	if !ok {
		return cacheEntry{}, false
	}
	e.source = SourceDurable
	t.promote(ctx, k, e)
	return e, true
}

// read fetches and validates one tier. Invalid entries are removed so
// the next read goes straight to the other tier or the network.
func (t *tieredCache) read(ctx context.Context, s store.Store, storageKey string) (cacheEntry, bool) {
	raw, ok, err := s.Get(ctx, storageKey)
	if err != nil {
		t.log.Warn("cache read error", Fields{"key": storageKey, "err": err})
		return cacheEntry{}, false
	}
	if !ok {
		return cacheEntry{}, false
	}
	e, err := wire.Decode(raw, wire.KindProfile)
	if err != nil {
		_ = s.Del(ctx, storageKey)
		t.hooks.SelfHeal(storageKey, "corrupt")
		return cacheEntry{}, false
	}
	if e.Epoch != t.epochs.current() {
		_ = s.Del(ctx, storageKey)
		t.hooks.SelfHeal(storageKey, "epoch_mismatch")
		return cacheEntry{}, false
	}
	p, err := t.codec.Decode(e.Payload)
	if err != nil {
		_ = s.Del(ctx, storageKey)
		t.hooks.SelfHeal(storageKey, "value_decode")
		return cacheEntry{}, false
	}
	return cacheEntry{profile: p, storedAt: time.UnixMilli(e.StoredAt)}, true
}

func (t *tieredCache) fresh(e cacheEntry) bool {
	return t.clock.Now().Sub(e.storedAt) < t.ttl
}

// promote re-encodes a durable hit into the fast tier preserving its
// original stored-at time, so promotion never refreshes staleness.
func (t *tieredCache) promote(ctx context.Context, storageKey string, e cacheEntry) {
	payload, err := t.codec.Encode(e.profile)
	if err != nil {
		return
	}
	b := wire.Encode(wire.Entry{
		Kind:     wire.KindProfile,
		Epoch:    t.epochs.current(),
		StoredAt: e.storedAt.UnixMilli(),
		Payload:  payload,
	})
	if ok, err := t.fast.Set(ctx, storageKey, b, t.ttl); err != nil || !ok {
		t.hooks.StoreSetRejected(storageKey, false)
	}
}

// put writes both tiers. The fast tier is written first so a concurrent
// reader of the same key never sees the durable tier ahead of the
// in-process one.
func (t *tieredCache) put(ctx context.Context, key string, p Profile) error {
	payload, err := t.codec.Encode(p)
	if err != nil {
		return err
	}
	b := wire.Encode(wire.Entry{
		Kind:     wire.KindProfile,
		Epoch:    t.epochs.current(),
		StoredAt: t.clock.Now().UnixMilli(),
		Payload:  payload,
	})
	k := t.storageKey(key)

	if ok, err := t.fast.Set(ctx, k, b, t.ttl); err != nil || !ok {
		t.hooks.StoreSetRejected(k, false)
	}
	if t.durable != nil {
		ok, err := t.durable.Set(ctx, k, b, 0)
		if err != nil {
			// Durable tier down: keep serving from memory only.
			t.log.Warn("durable write failed", Fields{"key": k, "err": err})
			return nil
		}
		if !ok {
			t.hooks.StoreSetRejected(k, true)
		}
	}
	return nil
}

func (t *tieredCache) invalidate(ctx context.Context, key string) error {
	k := t.storageKey(key)
	err := t.fast.Del(ctx, k)
	if t.durable != nil {
		if derr := t.durable.Del(ctx, k); err == nil {
			err = derr
		}
	}
	return err
}

// invalidateAll bumps the session epoch, atomically outdating every
// entry in both tiers (and any derived cache sharing the epoch).
func (t *tieredCache) invalidateAll(ctx context.Context) {
	newEpoch := t.epochs.bump(ctx)
	t.log.Debug("invalidated all cached identity state", Fields{"epoch": newEpoch})
}
