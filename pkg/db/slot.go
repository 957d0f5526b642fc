// Named-slot persistence: each slot holds one JSON document
package db

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ideanator/ideanator/pkg/utils"
)

// Slot names. Each owning in-memory structure mirrors into exactly one slot.
const (
	SlotConversations = "conversations"
	SlotMessages      = "allMessages"
	SlotDarkMode      = "isDarkMode"
	SlotSound         = "soundEnabled"
	SlotSessions      = "sessions"
)

// Slot is one persisted record: a name and a JSON-encoded value.
type Slot struct {
	Name      string    `gorm:"primaryKey;size:100"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Slot) TableName() string {
	return "slots"
}

// Store reads and writes named slots. Writes are fire-and-forget: failures
// are logged and never propagated to the caller, so a persistence problem
// cannot break an in-memory mutation that already happened.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStore creates a slot store over an opened database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, logger: utils.GetLogger()}
}

// Load decodes the named slot into out. It returns false when the slot is
// absent or its value cannot be parsed; in both cases the caller keeps its
// empty default. Corruption is logged, not surfaced.
func (s *Store) Load(slot string, out any) bool {
	var rec Slot
	if err := s.db.First(&rec, "name = ?", slot).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Failed to read slot", "slot", slot, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(rec.Value), out); err != nil {
		s.logger.Warn("Discarding malformed slot value", "slot", slot, "error", err)
		return false
	}
	return true
}

// Save encodes v and upserts it into the named slot.
func (s *Store) Save(slot string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode slot value", "slot", slot, "error", err)
		return
	}
	rec := Slot{Name: slot, Value: string(data), UpdatedAt: time.Now()}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		s.logger.Error("Failed to write slot", "slot", slot, "error", err)
	}
}
