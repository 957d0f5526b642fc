// Session correlator - maps conversations to remote dialogue sessions
package service

import (
	"sync"

	"github.com/ideanator/ideanator/pkg/db"
)

// SessionCorrelator maps a conversation id to the opaque session token the
// remote assistant returned for it. Absence means the next call starts a new
// dialogue. Entries are pruned synchronously when a conversation is deleted
// so a deleted conversation can never be resumed with a stale session.
type SessionCorrelator struct {
	mu       sync.RWMutex
	sessions map[string]string
	store    *db.Store
}

// NewSessionCorrelator restores the session map from the store.
func NewSessionCorrelator(store *db.Store) *SessionCorrelator {
	c := &SessionCorrelator{
		sessions: make(map[string]string),
		store:    store,
	}
	store.Load(db.SlotSessions, &c.sessions)
	if c.sessions == nil {
		c.sessions = make(map[string]string)
	}
	return c
}

// Get returns the token for the conversation, if any.
func (c *SessionCorrelator) Get(conversationID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.sessions[conversationID]
	return token, ok
}

// Set stores the token for the conversation, replacing any prior one.
func (c *SessionCorrelator) Set(conversationID, token string) {
	c.mu.Lock()
	c.sessions[conversationID] = token
	c.persistLocked()
	c.mu.Unlock()
}

// Remove drops the conversation's token. Unknown ids are a no-op.
func (c *SessionCorrelator) Remove(conversationID string) {
	c.mu.Lock()
	delete(c.sessions, conversationID)
	c.persistLocked()
	c.mu.Unlock()
}

func (c *SessionCorrelator) persistLocked() {
	snapshot := make(map[string]string, len(c.sessions))
	for id, token := range c.sessions {
		snapshot[id] = token
	}
	c.store.Save(db.SlotSessions, snapshot)
}
