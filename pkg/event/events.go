package event

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	ConversationCreated = "conversation.created"
	ConversationRenamed = "conversation.renamed"
	ConversationPinned  = "conversation.pinned"
	ConversationDeleted = "conversation.deleted"
	MessageAppended     = "message.appended"
	TurnStarted         = "turn.started"
	TurnFinished        = "turn.finished"
	PersonaChanged      = "persona.changed"
	ActiveChanged       = "active.changed"
	PreferencesChanged  = "preferences.changed"
)

// ============================================================================
// Conversation Events
// ============================================================================

// ConversationCreatedEvent is emitted when a conversation is created.
type ConversationCreatedEvent struct {
	ConversationID string `json:"conversation_id"`
}

func (e ConversationCreatedEvent) EventName() string { return ConversationCreated }

// ConversationRenamedEvent is emitted when a conversation title changes.
type ConversationRenamedEvent struct {
	ConversationID string `json:"conversation_id"`
}

func (e ConversationRenamedEvent) EventName() string { return ConversationRenamed }

// ConversationPinnedEvent is emitted when a conversation's pin flag flips.
type ConversationPinnedEvent struct {
	ConversationID string `json:"conversation_id"`
	Pinned         bool   `json:"pinned"`
}

func (e ConversationPinnedEvent) EventName() string { return ConversationPinned }

// ConversationDeletedEvent is emitted after a conversation and its history
// and session entry are removed.
type ConversationDeletedEvent struct {
	ConversationID string `json:"conversation_id"`
}

func (e ConversationDeletedEvent) EventName() string { return ConversationDeleted }

// ============================================================================
// Turn Events
// ============================================================================

// MessageAppendedEvent is emitted for every message written to the ledger.
type MessageAppendedEvent struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Sender         string `json:"sender"`
}

func (e MessageAppendedEvent) EventName() string { return MessageAppended }

// TurnStartedEvent is emitted when a remote exchange begins for a
// conversation; the UI disables that conversation's input until TurnFinished.
type TurnStartedEvent struct {
	ConversationID string `json:"conversation_id"`
}

func (e TurnStartedEvent) EventName() string { return TurnStarted }

// TurnFinishedEvent is emitted when the exchange settles, either way.
type TurnFinishedEvent struct {
	ConversationID string `json:"conversation_id"`
	Failed         bool   `json:"failed"`
}

func (e TurnFinishedEvent) EventName() string { return TurnFinished }

// ============================================================================
// Session-wide Events
// ============================================================================

// PersonaChangedEvent is emitted when the active persona switches.
type PersonaChangedEvent struct {
	Persona string `json:"persona"`
}

func (e PersonaChangedEvent) EventName() string { return PersonaChanged }

// ActiveChangedEvent is emitted when the active conversation changes.
// ConversationID is nil when no conversation is open.
type ActiveChangedEvent struct {
	ConversationID *string `json:"conversation_id"`
}

func (e ActiveChangedEvent) EventName() string { return ActiveChanged }

// PreferencesChangedEvent is emitted when dark mode or sound toggles.
type PreferencesChangedEvent struct{}

func (e PreferencesChangedEvent) EventName() string { return PreferencesChanged }
