// Package sloghook logs resolver hook events through slog. Keys and
// patient IDs are redacted by default (hashed prefix) since cache keys
// embed patient identifiers.
package sloghook

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/medrec-labs/profilecache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery   uint64
	StaleServeEvery uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr   atomic.Uint64
	staleServeCtr atomic.Uint64
}

var _ profilecache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("profilecache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) StaleServed(key string, age time.Duration) {
	if h.l == nil || !sample(h.opts.StaleServeEvery, &h.staleServeCtr) {
		return
	}
	h.l.Debug("profilecache.stale_served",
		"key", h.redact(key),
		"age", age)
}

func (h *Hooks) RevalidateStarted(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("profilecache.revalidate_started", "key", h.redact(key))
}

func (h *Hooks) RevalidateFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Info("profilecache.revalidate_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) IdentifierConflict(key, kept, rejected string) {
	if h.l == nil {
		return
	}
	h.l.Warn("profilecache.identifier_conflict",
		"key", h.redact(key),
		"kept", h.redact(kept),
		"rejected", h.redact(rejected))
}

func (h *Hooks) InvariantViolation(key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("profilecache.invariant_violation", "key", h.redact(key))
}

func (h *Hooks) RecoveryAttempt(attempt, max int) {
	if h.l == nil {
		return
	}
	h.l.Info("profilecache.recovery_attempt",
		"attempt", attempt,
		"max", max)
}

func (h *Hooks) RecoveryExhausted() {
	if h.l == nil {
		return
	}
	h.l.Warn("profilecache.recovery_exhausted")
}

func (h *Hooks) NegativePhotoHit(patientID string) {
	if h.l == nil {
		return
	}
	h.l.Debug("profilecache.negative_photo_hit", "patient", h.redact(patientID))
}

func (h *Hooks) StoreSetRejected(storageKey string, durable bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("profilecache.store_set_rejected",
		"key", h.redact(storageKey),
		"durable", durable)
}
