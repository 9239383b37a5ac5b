package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/poemonsense/antigravity-openai-proxy/internal/auth"
	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/errors"
	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
)

// Manager owns the account pool: the persistent store, cached credentials,
// the rate-limit ledger and the sticky round-robin cursor.
//
// Selection is sticky: the cursor stays on the account that served the last
// request and only advances when that account becomes unusable, so upstream
// prompt caches stay warm.
type Manager struct {
	mu     sync.Mutex // guards currentIndex
	store  *auth.Store
	creds  *Credentials
	ledger *RateLimitLedger

	endpoints    []string
	currentIndex int
}

// NewManager creates a Manager over the given store. endpoints is the
// upstream fallback order used for project discovery.
func NewManager(store *auth.Store, endpoints []string) *Manager {
	return &Manager{
		store:     store,
		creds:     NewCredentials(),
		ledger:    NewRateLimitLedger(),
		endpoints: endpoints,
	}
}

// Store exposes the backing account store.
func (m *Manager) Store() *auth.Store {
	return m.store
}

// Ledger exposes the rate-limit ledger.
func (m *Manager) Ledger() *RateLimitLedger {
	return m.ledger
}

// Count returns the number of accounts in the pool.
func (m *Manager) Count() int {
	return m.store.Len()
}

// usable reports whether the account can serve the model right now.
func (m *Manager) usable(acc *auth.Account, modelID string) bool {
	return !acc.Invalid && !m.ledger.IsLimited(acc.Email, modelID)
}

// AvailableCount returns how many accounts can serve the model right now.
func (m *Manager) AvailableCount(modelID string) int {
	n := 0
	for _, acc := range m.store.List() {
		if m.usable(acc, modelID) {
			n++
		}
	}
	return n
}

// IsAllRateLimited reports whether at least one valid account exists and
// every valid account is cooling down for the model.
func (m *Manager) IsAllRateLimited(modelID string) bool {
	valid := 0
	for _, acc := range m.store.List() {
		if acc.Invalid {
			continue
		}
		valid++
		if !m.ledger.IsLimited(acc.Email, modelID) {
			return false
		}
	}
	return valid > 0
}

// ClearExpiredLimits sweeps expired ledger entries.
func (m *Manager) ClearExpiredLimits() {
	if dropped := m.ledger.SweepExpired(); dropped > 0 {
		utils.Debug("cleared %d expired rate limits", dropped)
	}
}

// MarkRateLimited records an upstream 429 for the account/model pair.
func (m *Manager) MarkRateLimited(email string, resetMs *int64, modelID string) {
	m.ledger.Mark(email, resetMs, modelID)
	if resetMs != nil {
		utils.Warn("account %s rate limited for %s, reset in %s", email, modelID, utils.FormatDuration(*resetMs))
	} else {
		utils.Warn("account %s rate limited for %s, cooling down %s", email, modelID, utils.FormatDuration(config.DefaultCooldownMs))
	}
}

// MarkInvalid flags the account unusable for this process and drops its
// cached credentials. The on-disk record is untouched.
func (m *Manager) MarkInvalid(email, reason string) {
	m.store.MarkInvalid(email, reason)
	m.creds.ClearFor(email)
	utils.Error("account %s marked invalid: %s", email, reason)
}

// MinWaitTimeMs returns the shortest cooldown still pending for the model.
func (m *Manager) MinWaitTimeMs(modelID string) int64 {
	return m.ledger.MinWaitMs(modelID)
}

// PickNext advances the cursor round-robin to the next usable account. On
// failure the cursor is restored and nil is returned.
func (m *Manager) PickNext(modelID string) *auth.Account {
	accounts := m.store.List()
	if len(accounts) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	original := m.currentIndex
	for i := 0; i < len(accounts); i++ {
		m.currentIndex = (m.currentIndex + 1) % len(accounts)
		acc := accounts[m.currentIndex]
		if m.usable(acc, modelID) {
			utils.Debug("switched to account %s", acc.Email)
			return acc
		}
	}
	m.currentIndex = original
	return nil
}

// CurrentSticky returns the account under the cursor when it is usable for
// the model, clamping the cursor if the pool shrank.
func (m *Manager) CurrentSticky(modelID string) *auth.Account {
	accounts := m.store.List()
	if len(accounts) == 0 {
		return nil
	}
	m.mu.Lock()
	if m.currentIndex >= len(accounts) {
		m.currentIndex = 0
	}
	acc := accounts[m.currentIndex]
	m.mu.Unlock()
	if !m.usable(acc, modelID) {
		return nil
	}
	return acc
}

// ShouldWaitForCurrent returns the residual cooldown of the cursor account
// and whether sleeping it out is worthwhile (positive and inside the
// 120s ceiling).
func (m *Manager) ShouldWaitForCurrent(modelID string) (int64, bool) {
	accounts := m.store.List()
	if len(accounts) == 0 {
		return 0, false
	}
	m.mu.Lock()
	if m.currentIndex >= len(accounts) {
		m.currentIndex = 0
	}
	acc := accounts[m.currentIndex]
	m.mu.Unlock()
	if acc.Invalid {
		return 0, false
	}
	wait := m.ledger.WaitFor(acc.Email, modelID)
	return wait, wait > 0 && wait <= config.MaxWaitBeforeErrorMs
}

// PickSticky resolves the account for a request. It prefers the cursor
// account; when that account is briefly cooling down (at most half the wait
// ceiling) it returns a wait hint instead, and otherwise rotates.
func (m *Manager) PickSticky(modelID string) (*auth.Account, int64) {
	if acc := m.CurrentSticky(modelID); acc != nil {
		return acc, 0
	}
	if wait, ok := m.ShouldWaitForCurrent(modelID); ok && wait <= config.MaxWaitBeforeErrorMs/2 {
		return nil, wait
	}
	return m.PickNext(modelID), 0
}

// Token resolves a valid access token for the account.
func (m *Manager) Token(ctx context.Context, acc *auth.Account) (string, error) {
	return m.creds.Token(ctx, acc)
}

// Project resolves the Cloud Code project for the account.
func (m *Manager) Project(ctx context.Context, acc *auth.Account, token string) string {
	return m.creds.Project(ctx, acc, token, m.store, m.endpoints)
}

// PrimeToken seeds the token cache after an OAuth flow.
func (m *Manager) PrimeToken(email, token string, expiresIn int) {
	m.creds.Prime(email, token, expiresIn)
}

// ClearCredentials drops cached token and project for an account, forcing a
// refresh on next use.
func (m *Manager) ClearCredentials(email string) {
	m.creds.ClearFor(email)
}

// AddFromFlow stores the account produced by a completed OAuth flow and
// primes its token cache.
func (m *Manager) AddFromFlow(result *auth.FlowResult) error {
	if m.store.Get(result.Email) == nil && m.store.Len() >= config.MaxAccounts {
		return fmt.Errorf("account limit reached (%d)", config.MaxAccounts)
	}
	if err := m.store.AddOrUpdate(result.Email, result.RefreshToken, result.ProjectID); err != nil {
		return err
	}
	if result.AccessToken != "" && result.ExpiresIn > 0 {
		m.creds.Prime(result.Email, result.AccessToken, result.ExpiresIn)
	}
	return nil
}

// Remove deletes an account from the pool.
func (m *Manager) Remove(email string) (bool, error) {
	m.creds.ClearFor(email)
	return m.store.Remove(email)
}

// ResetRateLimits clears the whole ledger.
func (m *Manager) ResetRateLimits() {
	m.ledger.Reset()
}

// AccountStatus is the status of one account for reporting.
type AccountStatus struct {
	Email         string `json:"email"`
	ProjectID     string `json:"project_id,omitempty"`
	Invalid       bool   `json:"invalid"`
	InvalidReason string `json:"invalid_reason,omitempty"`
	Current       bool   `json:"current"`
}

// Status describes the pool for the status endpoint.
type Status struct {
	Total      int             `json:"total"`
	Available  int             `json:"available"`
	Accounts   []AccountStatus `json:"accounts"`
	RateLimits []LimitInfo     `json:"rate_limits"`
}

// Status snapshots the pool.
func (m *Manager) Status() *Status {
	accounts := m.store.List()
	m.mu.Lock()
	current := m.currentIndex
	m.mu.Unlock()

	st := &Status{
		Total:      len(accounts),
		Available:  m.AvailableCount(""),
		RateLimits: m.ledger.Snapshot(),
	}
	for i, acc := range accounts {
		st.Accounts = append(st.Accounts, AccountStatus{
			Email:         acc.Email,
			ProjectID:     acc.ProjectID,
			Invalid:       acc.Invalid,
			InvalidReason: acc.InvalidReason,
			Current:       i == current,
		})
	}
	return st
}

// ErrNoUsableAccounts builds the terminal error for an empty or fully
// unusable pool.
func (m *Manager) ErrNoUsableAccounts() error {
	if m.store.Len() == 0 {
		return errors.NewNoAccountsError("no accounts configured, run the accounts CLI to add one")
	}
	return errors.NewNoAccountsError("all accounts are rate limited or invalid")
}
