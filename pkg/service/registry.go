// Conversation registry - owns the ordered conversation collection
package service

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ideanator/ideanator/pkg/db"
	"github.com/ideanator/ideanator/pkg/models"
)

// ConversationRegistry owns the ordered collection of conversation records.
// New conversations are inserted at the front; every mutation is mirrored to
// the persistent store. Message sequences live in the MessageLedger, keyed by
// the same ids but never referenced from here.
type ConversationRegistry struct {
	mu            sync.RWMutex
	conversations []models.Conversation
	store         *db.Store
}

// NewConversationRegistry restores the conversation list from the store.
// An absent or unreadable slot yields an empty registry.
func NewConversationRegistry(store *db.Store) *ConversationRegistry {
	r := &ConversationRegistry{store: store}
	store.Load(db.SlotConversations, &r.conversations)
	return r
}

// Create allocates a fresh conversation with the given title and inserts it
// unpinned at the front of the collection. It never fails.
func (r *ConversationRegistry) Create(title string) models.Conversation {
	conv := models.Conversation{
		ID:          uuid.New().String(),
		Title:       title,
		LastMessage: "Just now",
	}

	r.mu.Lock()
	r.conversations = append([]models.Conversation{conv}, r.conversations...)
	r.persistLocked()
	r.mu.Unlock()

	return conv
}

// Get returns the conversation with the given id.
func (r *ConversationRegistry) Get(id string) (models.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return models.Conversation{}, false
}

// Rename replaces the title. Whitespace-only titles are a no-op, as is an
// unknown id; the return value reports whether anything changed.
func (r *ConversationRegistry) Rename(id, newTitle string) bool {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.conversations {
		if r.conversations[i].ID == id {
			r.conversations[i].Title = newTitle
			r.persistLocked()
			return true
		}
	}
	return false
}

// TogglePin flips the pinned flag. Unknown ids are a no-op.
func (r *ConversationRegistry) TogglePin(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.conversations {
		if r.conversations[i].ID == id {
			r.conversations[i].Pinned = !r.conversations[i].Pinned
			r.persistLocked()
			return true
		}
	}
	return false
}

// Touch refreshes the last-activity marker. Unknown ids are a no-op, which
// covers replies that land after their conversation was deleted.
func (r *ConversationRegistry) Touch(id, lastMessage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.conversations {
		if r.conversations[i].ID == id {
			r.conversations[i].LastMessage = lastMessage
			r.persistLocked()
			return
		}
	}
}

// Delete removes the conversation record and reports whether it existed.
// Cascading into the ledger and correlator is the DialogueController's job.
func (r *ConversationRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.conversations {
		if r.conversations[i].ID == id {
			r.conversations = append(r.conversations[:i], r.conversations[i+1:]...)
			r.persistLocked()
			return true
		}
	}
	return false
}

// List returns conversations whose title contains filter (case-insensitive),
// pinned first. Within each pin group the registry's insertion-relative order
// is preserved, so the sort must be stable.
func (r *ConversationRegistry) List(filter string) []models.Conversation {
	r.mu.RLock()
	out := make([]models.Conversation, 0, len(r.conversations))
	needle := strings.ToLower(strings.TrimSpace(filter))
	for _, c := range r.conversations {
		if needle == "" || strings.Contains(strings.ToLower(c.Title), needle) {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pinned && !out[j].Pinned
	})
	return out
}

func (r *ConversationRegistry) persistLocked() {
	snapshot := make([]models.Conversation, len(r.conversations))
	copy(snapshot, r.conversations)
	r.store.Save(db.SlotConversations, snapshot)
}
