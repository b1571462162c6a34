// Package session holds the per-process interaction state: topup drafts that
// have not been submitted yet, and the "awaiting admin review" lock. Neither
// survives a restart; the persisted ledger stays authoritative.
package session

import (
	"sync"
	"time"
)

// Draft is an uncommitted topup: the user has declared an amount and maybe
// picked a payment channel, but has not attached a proof of payment.
type Draft struct {
	Amount    int
	Channel   string
	CreatedAt time.Time
}

// Manager enforces at most one draft per user and tracks which users are
// locked while their submitted topup awaits review.
type Manager struct {
	mu       sync.RWMutex
	drafts   map[string]Draft
	locked   map[string]bool
	draftTTL time.Duration
}

func NewManager(draftTTL time.Duration) *Manager {
	return &Manager{
		drafts:   make(map[string]Draft),
		locked:   make(map[string]bool),
		draftTTL: draftTTL,
	}
}

// StartDraft records a new draft. It reports false if the user already has a
// live draft.
func (m *Manager) StartDraft(userID string, amount int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.drafts[userID]; ok && !m.expired(d) {
		return false
	}
	m.drafts[userID] = Draft{Amount: amount, CreatedAt: time.Now()}
	return true
}

// SetChannel attaches the chosen payment channel to an existing draft.
func (m *Manager) SetChannel(userID, channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[userID]
	if !ok || m.expired(d) {
		delete(m.drafts, userID)
		return false
	}
	d.Channel = channel
	m.drafts[userID] = d
	return true
}

// Draft returns the user's live draft, if any.
func (m *Manager) Draft(userID string) (Draft, bool) {
	m.mu.RLock()
	d, ok := m.drafts[userID]
	m.mu.RUnlock()

	if !ok {
		return Draft{}, false
	}
	if m.expired(d) {
		m.ClearDraft(userID)
		return Draft{}, false
	}
	return d, true
}

func (m *Manager) ClearDraft(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, userID)
}

// Lock marks the user as awaiting admin review.
func (m *Manager) Lock(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked[userID] = true
}

// Unlock clears the awaiting-review state. Called on approve, reject, and
// whenever the authoritative history shows no pending topup.
func (m *Manager) Unlock(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, userID)
}

func (m *Manager) Locked(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked[userID]
}

func (m *Manager) expired(d Draft) bool {
	return m.draftTTL > 0 && time.Since(d.CreatedAt) > m.draftTTL
}
