package profilecache

import (
	"context"
	"time"

	"github.com/medrec-labs/profilecache/codec"
	"github.com/medrec-labs/profilecache/internal/wire"
	"github.com/medrec-labs/profilecache/store"
)

type photoState int

const (
	photoMiss photoState = iota
	photoHit
	photoNegative
)

// photoCache caches profile photo URLs in a key space independent from
// the profile cache, keyed by patient ID only (attachments belong to
// the durable identity, never to a session-scoped lookup hint). A
// confirmed-absent response is cached as an explicit negative sentinel
// with its own, shorter TTL so absence is eventually re-verified
// instead of being remembered forever. It shares the session epoch with
// the profile cache, so invalidate-all covers it too.
type photoCache struct {
	ns      string
	fast    store.Store
	durable store.Store // may be nil
	epochs  *epochStore
	posTTL  time.Duration
	negTTL  time.Duration
	clock   Clock
	log     Logger
	hooks   Hooks
}

var urlCodec = codec.String{}

func (p *photoCache) storageKey(patientID string) string {
	return "photo:" + p.ns + ":" + patientID
}

func (p *photoCache) get(ctx context.Context, patientID string) (string, photoState) {
	k := p.storageKey(patientID)
	if url, st, _ := p.read(ctx, p.fast, k); st != photoMiss {
		return url, st
	}
	if p.durable == nil {
		return "", photoMiss
	}
	url, st, raw := p.read(ctx, p.durable, k)
	if st == photoMiss {
		return "", photoMiss
	}
	// Promote the already-validated envelope so the next lookup skips
	// the durable tier. The stored timestamp rides along unchanged;
	// promotion never extends a TTL. Negative sentinels carry their
	// own, shorter hint.
	ttl := p.posTTL
	if st == photoNegative {
		ttl = p.negTTL
	}
	if ok, err := p.fast.Set(ctx, k, raw, ttl); err != nil || !ok {
		p.hooks.StoreSetRejected(k, false)
	}
	return url, st
}

// read fetches and validates one tier. On a hit it also returns the
// raw envelope so get can promote it without a second store read.
func (p *photoCache) read(ctx context.Context, s store.Store, storageKey string) (string, photoState, []byte) {
	raw, ok, err := s.Get(ctx, storageKey)
	if err != nil || !ok {
		return "", photoMiss, nil
	}
	e, err := wire.Decode(raw, wire.KindAttachment)
	if err != nil {
		_ = s.Del(ctx, storageKey)
		p.hooks.SelfHeal(storageKey, "corrupt")
		return "", photoMiss, nil
	}
	if e.Epoch != p.epochs.current() {
		_ = s.Del(ctx, storageKey)
		p.hooks.SelfHeal(storageKey, "epoch_mismatch")
		return "", photoMiss, nil
	}
	if e.Negative {
		if !withinTTL(e.StoredAt, p.negTTL, p.clock) {
			return "", photoMiss, nil // sentinel expired: re-verify absence
		}
		return "", photoNegative, raw
	}
	if !withinTTL(e.StoredAt, p.posTTL, p.clock) {
		return "", photoMiss, nil
	}
	url, err := urlCodec.Decode(e.Payload)
	if err != nil || url == "" {
		_ = s.Del(ctx, storageKey)
		p.hooks.SelfHeal(storageKey, "value_decode")
		return "", photoMiss, nil
	}
	return url, photoHit, raw
}

func (p *photoCache) put(ctx context.Context, patientID, url string, negative bool) {
	var payload []byte
	if !negative {
		payload, _ = urlCodec.Encode(url)
	}
	b := wire.Encode(wire.Entry{
		Kind:     wire.KindAttachment,
		Epoch:    p.epochs.current(),
		StoredAt: p.clock.Now().UnixMilli(),
		Negative: negative,
		Payload:  payload,
	})
	k := p.storageKey(patientID)
	ttl := p.posTTL
	if negative {
		ttl = p.negTTL
	}
	if ok, err := p.fast.Set(ctx, k, b, ttl); err != nil || !ok {
		p.hooks.StoreSetRejected(k, false)
	}
	if p.durable != nil {
		if ok, err := p.durable.Set(ctx, k, b, 0); err != nil {
			p.log.Warn("durable photo write failed", Fields{"key": k, "err": err})
		} else if !ok {
			p.hooks.StoreSetRejected(k, true)
		}
	}
}
