// Package asynchook decouples hook sinks from the resolver's hot path:
// events are queued to a bounded channel and delivered by worker
// goroutines; when the queue is full events are dropped, never blocked
// on.
package asynchook

import (
	"sync"
	"time"

	"github.com/medrec-labs/profilecache"
)

type Hooks struct {
	inner profilecache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ profilecache.Hooks = (*Hooks)(nil)

func New(inner profilecache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, r string)          { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) RevalidateStarted(k string)    { h.try(func() { h.inner.RevalidateStarted(k) }) }
func (h *Hooks) InvariantViolation(k string)   { h.try(func() { h.inner.InvariantViolation(k) }) }
func (h *Hooks) RecoveryExhausted()            { h.try(func() { h.inner.RecoveryExhausted() }) }
func (h *Hooks) NegativePhotoHit(pid string)   { h.try(func() { h.inner.NegativePhotoHit(pid) }) }
func (h *Hooks) StaleServed(k string, age time.Duration) {
	h.try(func() { h.inner.StaleServed(k, age) })
}
func (h *Hooks) RevalidateFailed(k string, err error) {
	h.try(func() { h.inner.RevalidateFailed(k, err) })
}
func (h *Hooks) IdentifierConflict(k, kept, rejected string) {
	h.try(func() { h.inner.IdentifierConflict(k, kept, rejected) })
}
func (h *Hooks) RecoveryAttempt(attempt, max int) {
	h.try(func() { h.inner.RecoveryAttempt(attempt, max) })
}
func (h *Hooks) StoreSetRejected(k string, durable bool) {
	h.try(func() { h.inner.StoreSetRejected(k, durable) })
}
