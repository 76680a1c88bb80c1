package profilecache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/medrec-labs/profilecache/store"
)

// epochStore tracks the session epoch. Every cache entry is written
// under the epoch current at write time; a bump makes all prior entries
// miss on read, which is how invalidate-all works without enumerating a
// key-value store. The epoch is persisted so a bump survives a process
// restart, and reads self-heal outdated entries lazily.
type epochStore struct {
	durable store.Store // may be nil (in-process only)
	key     string
	log     Logger

	mu  sync.Mutex
	cur uint64
}

func newEpochStore(ctx context.Context, durable store.Store, key string, log Logger) *epochStore {
	e := &epochStore{durable: durable, key: key, log: log}
	if durable == nil {
		return e
	}
	if b, ok, err := durable.Get(ctx, key); err == nil && ok {
		if v, perr := strconv.ParseUint(string(b), 10, 64); perr == nil {
			e.cur = v
		}
	} else if err != nil {
		log.Warn("epoch load failed; starting at zero", Fields{"err": err})
	}
	return e
}

func (e *epochStore) current() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur
}

// bump advances the epoch and persists it before returning, so no
// reader can observe a partially-cleared cache: once bump returns,
// every read of an older entry misses.
func (e *epochStore) bump(ctx context.Context) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cur++
	if e.durable != nil {
		if ok, err := e.durable.Set(ctx, e.key, []byte(strconv.FormatUint(e.cur, 10)), 0); err != nil || !ok {
			e.log.Warn("epoch persist failed; invalidate-all is process-local until next write", Fields{
				"epoch": e.cur, "err": err,
			})
		}
	}
	return e.cur
}

// withinTTL reports whether a stored-at timestamp (unix ms) is younger
// than ttl as seen by clock.
func withinTTL(storedAt int64, ttl time.Duration, clock Clock) bool {
	return clock.Now().Sub(time.UnixMilli(storedAt)) < ttl
}
