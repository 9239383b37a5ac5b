// Package account manages the account pool: cached credentials, the
// rate-limit ledger and sticky round-robin selection.
package account

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/poemonsense/antigravity-openai-proxy/internal/auth"
	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
)

// tokenSafetyMargin is subtracted from the upstream TTL when a token is
// cached, so lookups never hand out a token about to expire mid-request.
const tokenSafetyMargin = 60 * time.Second

type tokenEntry struct {
	token     string
	expiresAt time.Time
}

// TokenCache caches access tokens per account email. The safety margin is
// baked in at Set time; Get is a plain deadline check.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[string]tokenEntry
	now     func() time.Time
}

// NewTokenCache creates an empty token cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{
		entries: make(map[string]tokenEntry),
		now:     time.Now,
	}
}

// Set caches a token for expiresIn seconds minus the safety margin.
func (c *TokenCache) Set(email, token string, expiresIn int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[email] = tokenEntry{
		token:     token,
		expiresAt: c.now().Add(time.Duration(expiresIn)*time.Second - tokenSafetyMargin),
	}
}

// Get returns the cached token when still inside the deadline.
func (c *TokenCache) Get(email string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[email]
	if !ok || !c.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.token, true
}

// Clear drops the cached token for one account.
func (c *TokenCache) Clear(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, email)
}

// ClearAll drops every cached token.
func (c *TokenCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]tokenEntry)
}

// ProjectCache caches discovered project IDs per account email. Projects do
// not expire; entries live until cleared.
type ProjectCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewProjectCache creates an empty project cache.
func NewProjectCache() *ProjectCache {
	return &ProjectCache{entries: make(map[string]string)}
}

// Set caches a project ID.
func (c *ProjectCache) Set(email, projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[email] = projectID
}

// Get returns the cached project ID.
func (c *ProjectCache) Get(email string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	projectID, ok := c.entries[email]
	return projectID, ok
}

// Clear drops the cached project for one account.
func (c *ProjectCache) Clear(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, email)
}

// Credentials resolves access tokens and project IDs for accounts, caching
// both. Concurrent refreshes for the same account collapse into one upstream
// call.
type Credentials struct {
	tokens   *TokenCache
	projects *ProjectCache
	refresh  singleflight.Group
}

// NewCredentials creates a Credentials resolver.
func NewCredentials() *Credentials {
	return &Credentials{
		tokens:   NewTokenCache(),
		projects: NewProjectCache(),
	}
}

// Token returns a valid access token for the account, refreshing through
// the OAuth endpoint on cache miss.
func (c *Credentials) Token(ctx context.Context, acc *auth.Account) (string, error) {
	if token, ok := c.tokens.Get(acc.Email); ok {
		return token, nil
	}
	v, err, _ := c.refresh.Do(acc.Email, func() (interface{}, error) {
		if token, ok := c.tokens.Get(acc.Email); ok {
			return token, nil
		}
		utils.Debug("refreshing access token for %s", acc.Email)
		tokens, err := auth.RefreshAccessToken(ctx, acc.Email, acc.RefreshToken)
		if err != nil {
			return nil, err
		}
		c.tokens.Set(acc.Email, tokens.AccessToken, tokens.ExpiresIn)
		return tokens.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Prime seeds the token cache, e.g. right after an OAuth flow already
// produced a fresh access token.
func (c *Credentials) Prime(email, token string, expiresIn int) {
	c.tokens.Set(email, token, expiresIn)
}

// Project resolves the Cloud Code project for the account: cache, then the
// stored account record, then endpoint discovery (persisted through store),
// then the fixed default.
func (c *Credentials) Project(ctx context.Context, acc *auth.Account, token string, store *auth.Store, endpoints []string) string {
	if projectID, ok := c.projects.Get(acc.Email); ok {
		return projectID
	}
	if acc.ProjectID != "" {
		c.projects.Set(acc.Email, acc.ProjectID)
		return acc.ProjectID
	}
	projectID := auth.DiscoverProjectID(ctx, token, endpoints)
	c.projects.Set(acc.Email, projectID)
	if projectID != config.DefaultProjectID && store != nil {
		if err := store.SetProjectID(acc.Email, projectID); err != nil {
			utils.Warn("persisting discovered project for %s: %v", acc.Email, err)
		}
	}
	return projectID
}

// ClearFor drops cached credentials for one account, forcing a refresh and
// rediscovery on next use.
func (c *Credentials) ClearFor(email string) {
	c.tokens.Clear(email)
	c.projects.Clear(email)
}

// ClearTokens drops every cached access token.
func (c *Credentials) ClearTokens() {
	c.tokens.ClearAll()
}
