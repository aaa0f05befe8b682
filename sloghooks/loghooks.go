// Package sloghooks implements tagcache.Hooks on top of log/slog with
// optional sampling of the noisy events.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery   uint64
	InvalidateEvery uint64
	RefetchEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr   atomic.Uint64
	invalidateCtr atomic.Uint64
	refetchCtr    atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

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

func (h *Hooks) EntryInvalidated(queryKey string, tags []tagcache.Tag) {
	if h.l == nil || !sample(h.opts.InvalidateEvery, &h.invalidateCtr) {
		return
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.String()
	}
	h.l.Debug("tagcache.entry_invalidated",
		"key", h.redact(queryKey),
		"tags", strings.Join(names, ","))
}

func (h *Hooks) RefetchScheduled(queryKey string) {
	if h.l == nil || !sample(h.opts.RefetchEvery, &h.refetchCtr) {
		return
	}
	h.l.Debug("tagcache.refetch_scheduled",
		"key", h.redact(queryKey))
}

func (h *Hooks) QueryFailed(queryKey, message string) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.query_failed",
		"key", h.redact(queryKey),
		"message", message)
}

func (h *Hooks) EntryEvicted(queryKey, reason string) {
	if h.l == nil {
		return
	}
	h.l.Debug("tagcache.entry_evicted",
		"key", h.redact(queryKey),
		"reason", reason)
}

func (h *Hooks) SelfHealEntry(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("tagcache.self_heal_entry",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) GenSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.gen_snapshot_error",
		"count", count,
		"err", err)
}

func (h *Hooks) GenBumpError(keys []string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.gen_bump_error",
		"count", len(keys),
		"err", err)
}

func (h *Hooks) UndeclaredTagType(kind string) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.undeclared_tag_type",
		"kind", kind,
		"msg", "invalidations during in-flight fetches of this kind are not detected")
}
