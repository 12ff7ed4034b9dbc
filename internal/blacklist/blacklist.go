// Package blacklist holds the in-memory registry of revoked tokens.
//
// The blacklist is an explicit component constructed once at process start and
// injected wherever needed. It is not persisted: a restart loses entries, which
// is tolerated because refresh rotation continuously narrows the exposure
// window. Entries are keyed by a SHA-256 hash of the token so raw bearer
// credentials never sit in memory.
package blacklist

import (
	"context"
	"log"
	"sync"
	"time"

	"resqride/backend/internal/security"
)

// Revocation reason codes recorded on blacklist entries.
const (
	ReasonUserLogout        = "user_logout"
	ReasonLogoutAllSessions = "logout_all_sessions"
	ReasonTokenRefresh      = "token_refresh"
	ReasonSessionExpired    = "session_expired"
	ReasonUserRequested     = "user_requested_invalidation"
)

// Entry records one revoked token.
type Entry struct {
	UserID        string
	SessionID     string
	Reason        string
	BlacklistedAt time.Time
	ExpiresAt     time.Time
}

// Blacklist is a concurrency-safe revocation registry with expiry-based eviction.
type Blacklist struct {
	mu      sync.RWMutex
	entries map[string]Entry
	window  time.Duration
	now     func() time.Time
}

// New returns a Blacklist whose entries expire window after insertion
// (independent of the token's own expiry).
func New(window time.Duration) *Blacklist {
	return &Blacklist{
		entries: make(map[string]Entry),
		window:  window,
		now:     time.Now().UTC,
	}
}

// Add inserts the token with blacklistedAt=now and expiry=now+window.
// Idempotent: re-adding an already listed token overwrites the entry
// (last write wins) and never grows the registry.
func (b *Blacklist) Add(token, userID, sessionID, reason string) {
	b.AddHash(security.HashToken(token), userID, sessionID, reason)
}

// AddHash revokes a token by its precomputed SHA-256 hash. Session records
// store only the hash of the live refresh token, so logout paths revoke
// through this method without ever seeing the raw token.
func (b *Blacklist) AddHash(tokenHash, userID, sessionID, reason string) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[tokenHash] = Entry{
		UserID:        userID,
		SessionID:     sessionID,
		Reason:        reason,
		BlacklistedAt: now,
		ExpiresAt:     now.Add(b.window),
	}
}

// Contains reports whether the token is currently revoked. Returns false when
// the entry is absent or past its own expiry; expired entries are removed
// lazily on lookup. This is the authorization-critical read path and is an
// O(1) map lookup.
func (b *Blacklist) Contains(token string) bool {
	key := security.HashToken(token)
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if !e.ExpiresAt.After(b.now()) {
		// The entry may have been replaced between the two locks, so
		// re-check expiry before evicting.
		b.mu.Lock()
		defer b.mu.Unlock()
		cur, ok := b.entries[key]
		if !ok {
			return false
		}
		if !cur.ExpiresAt.After(b.now()) {
			delete(b.entries, key)
			return false
		}
		return true
	}
	return true
}

// Sweep removes all entries whose expiry has passed and returns the number removed.
// Safe to call concurrently with Add/Contains; also exposed for administrative use.
func (b *Blacklist) Sweep() int {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for key, e := range b.entries {
		if !e.ExpiresAt.After(now) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed
}

// Count returns the current number of entries, for observability.
func (b *Blacklist) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Run sweeps expired entries on the given interval until ctx is cancelled.
// Intended to be started once from main as a background goroutine.
func (b *Blacklist) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := b.Sweep(); removed > 0 {
				log.Printf("blacklist: swept %d expired entries", removed)
			}
		}
	}
}
