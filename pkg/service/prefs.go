// User preferences - the two persisted UI flags
package service

import (
	"sync"

	"github.com/ideanator/ideanator/pkg/db"
	"github.com/ideanator/ideanator/pkg/event"
	"github.com/ideanator/ideanator/pkg/models"
)

// PreferencesService owns the dark-mode and sound flags. Each flag lives in
// its own slot so a corrupted value resets only that flag.
type PreferencesService struct {
	mu    sync.RWMutex
	prefs models.Preferences
	store *db.Store
}

// NewPreferencesService restores both flags from the store. Sound defaults
// to on, dark mode to off.
func NewPreferencesService(store *db.Store) *PreferencesService {
	s := &PreferencesService{
		prefs: models.Preferences{SoundEnabled: true},
		store: store,
	}
	store.Load(db.SlotDarkMode, &s.prefs.DarkMode)
	store.Load(db.SlotSound, &s.prefs.SoundEnabled)
	return s
}

// Get returns the current preferences.
func (s *PreferencesService) Get() models.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Set replaces both flags and persists each to its slot.
func (s *PreferencesService) Set(p models.Preferences) {
	s.mu.Lock()
	s.prefs = p
	s.store.Save(db.SlotDarkMode, p.DarkMode)
	s.store.Save(db.SlotSound, p.SoundEnabled)
	s.mu.Unlock()

	event.Emit(event.PreferencesChangedEvent{})
}
