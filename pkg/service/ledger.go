// Message ledger - owns per-conversation message sequences
package service

import (
	"sync"

	"github.com/ideanator/ideanator/pkg/db"
	"github.com/ideanator/ideanator/pkg/models"
)

// MessageLedger owns the ordered message sequence of each conversation.
// Sequences are append-only; the only removal is deleting a whole
// conversation's history. Individual messages are never mutated.
type MessageLedger struct {
	mu       sync.RWMutex
	messages map[string][]models.Message
	store    *db.Store
}

// NewMessageLedger restores the message map from the store. An absent or
// unreadable slot yields an empty ledger.
func NewMessageLedger(store *db.Store) *MessageLedger {
	l := &MessageLedger{
		messages: make(map[string][]models.Message),
		store:    store,
	}
	store.Load(db.SlotMessages, &l.messages)
	if l.messages == nil {
		l.messages = make(map[string][]models.Message)
	}
	return l
}

// Append adds a message to the end of the conversation's sequence, creating
// the sequence if absent. A reply resolving after its conversation was
// deleted lands here too, in a fresh orphaned sequence; that is deliberate.
func (l *MessageLedger) Append(conversationID string, msg models.Message) {
	l.mu.Lock()
	l.messages[conversationID] = append(l.messages[conversationID], msg)
	l.persistLocked()
	l.mu.Unlock()
}

// Get returns the conversation's messages in append order. A conversation
// with no messages yields an empty slice, not an error.
func (l *MessageLedger) Get(conversationID string) []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs := l.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of messages in the conversation.
func (l *MessageLedger) Len(conversationID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages[conversationID])
}

// Delete removes the conversation's entire sequence.
func (l *MessageLedger) Delete(conversationID string) {
	l.mu.Lock()
	delete(l.messages, conversationID)
	l.persistLocked()
	l.mu.Unlock()
}

func (l *MessageLedger) persistLocked() {
	snapshot := make(map[string][]models.Message, len(l.messages))
	for id, msgs := range l.messages {
		seq := make([]models.Message, len(msgs))
		copy(seq, msgs)
		snapshot[id] = seq
	}
	l.store.Save(db.SlotMessages, snapshot)
}
