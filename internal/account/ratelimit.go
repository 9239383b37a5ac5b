package account

import (
	"strings"
	"sync"
	"time"

	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
)

type limitEntry struct {
	resetAtMs int64
	modelID   string
}

// RateLimitLedger records upstream cooldowns. Keys are "email" for
// account-wide limits and "email:model" for per-model limits.
type RateLimitLedger struct {
	mu     sync.RWMutex
	limits map[string]limitEntry
	now    func() time.Time
}

// NewRateLimitLedger creates an empty ledger.
func NewRateLimitLedger() *RateLimitLedger {
	return &RateLimitLedger{
		limits: make(map[string]limitEntry),
		now:    time.Now,
	}
}

func ledgerKey(email, modelID string) string {
	if modelID != "" {
		return email + ":" + modelID
	}
	return email
}

func (l *RateLimitLedger) nowMs() int64 {
	return l.now().UnixMilli()
}

// Mark records a cooldown for the account (and model, when given). A nil
// reset hint falls back to the default cooldown.
func (l *RateLimitLedger) Mark(email string, resetMs *int64, modelID string) {
	cooldown := int64(config.DefaultCooldownMs)
	if resetMs != nil {
		cooldown = *resetMs
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[ledgerKey(email, modelID)] = limitEntry{
		resetAtMs: l.nowMs() + cooldown,
		modelID:   modelID,
	}
}

// IsLimited reports whether the account is cooling down, checking the
// per-model key first and the account-wide key second.
func (l *RateLimitLedger) IsLimited(email, modelID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	now := l.nowMs()
	if modelID != "" {
		if entry, ok := l.limits[ledgerKey(email, modelID)]; ok && entry.resetAtMs > now {
			return true
		}
	}
	entry, ok := l.limits[email]
	return ok && entry.resetAtMs > now
}

// WaitFor returns the residual cooldown in milliseconds for the account,
// the larger of the per-model and account-wide entries. Zero means usable.
func (l *RateLimitLedger) WaitFor(email, modelID string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	now := l.nowMs()
	var wait int64
	if modelID != "" {
		if entry, ok := l.limits[ledgerKey(email, modelID)]; ok && entry.resetAtMs > now {
			wait = entry.resetAtMs - now
		}
	}
	if entry, ok := l.limits[email]; ok && entry.resetAtMs-now > wait {
		wait = entry.resetAtMs - now
	}
	return wait
}

// MinWaitMs returns the shortest residual cooldown across the ledger,
// optionally filtered by model. The filter keeps account-wide keys (no
// colon) in scope even when a model is given; per-model keys of other
// models are skipped.
func (l *RateLimitLedger) MinWaitMs(modelID string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	now := l.nowMs()
	var min int64 = -1
	for key, entry := range l.limits {
		if modelID != "" && !strings.Contains(key, ":"+modelID) && strings.Contains(key, ":") {
			continue
		}
		wait := entry.resetAtMs - now
		if wait <= 0 {
			continue
		}
		if min < 0 || wait < min {
			min = wait
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// SweepExpired removes entries whose cooldown has passed and returns how
// many were dropped.
func (l *RateLimitLedger) SweepExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowMs()
	dropped := 0
	for key, entry := range l.limits {
		if entry.resetAtMs <= now {
			delete(l.limits, key)
			dropped++
		}
	}
	return dropped
}

// Reset clears the whole ledger.
func (l *RateLimitLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits = make(map[string]limitEntry)
}

// LimitInfo is one ledger entry snapshot for status reporting.
type LimitInfo struct {
	Key         string `json:"key"`
	Model       string `json:"model,omitempty"`
	ResetInMs   int64  `json:"reset_in_ms"`
	ResetAtUnix int64  `json:"reset_at_unix_ms"`
}

// Snapshot returns the active entries, for status endpoints.
func (l *RateLimitLedger) Snapshot() []LimitInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	now := l.nowMs()
	out := make([]LimitInfo, 0, len(l.limits))
	for key, entry := range l.limits {
		if entry.resetAtMs <= now {
			continue
		}
		out = append(out, LimitInfo{
			Key:         key,
			Model:       entry.modelID,
			ResetInMs:   entry.resetAtMs - now,
			ResetAtUnix: entry.resetAtMs,
		})
	}
	return out
}
