// Core chat types: conversations, messages, and the API request/response
// shapes exchanged with the UI.
package models

// Message senders.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Conversation is one entry in the conversation list. LastMessage is a
// display marker only; it carries no ordering semantics.
type Conversation struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	LastMessage string `json:"lastMessage"`
	Pinned      bool   `json:"pinned"`
}

// Message is a single entry in a conversation thread. Messages are never
// mutated after creation; sequence order within a conversation is
// authoritative (Timestamp is display-only).
type Message struct {
	ID        string  `json:"id"`
	Sender    string  `json:"sender"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp"`
	Persona   Persona `json:"persona"`
}

// ========== Assistant wire contract ==========

// AssistantRequest is the single request shape the remote assistant accepts.
// SessionID is nil on the first turn of a conversation; afterwards it carries
// the token returned by the assistant, unmodified.
type AssistantRequest struct {
	Prompt    string  `json:"prompt"`
	Persona   string  `json:"persona"`
	SessionID *string `json:"sessionId"`
}

// AssistantResponse is the success shape returned by the remote assistant.
// SessionID is optional; when present it replaces the stored token for the
// conversation.
type AssistantResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId,omitempty"`
}

// ========== UI-facing API types ==========

// NewConversationRequest starts a new conversation: persona + first prompt,
// plus the persona's extra parameter when it requires one.
type NewConversationRequest struct {
	Persona string `json:"persona" binding:"required"`
	Prompt  string `json:"prompt" binding:"required"`
	Age     string `json:"age,omitempty"`
	Method  string `json:"method,omitempty"`
}

// SendMessageRequest sends one turn in an existing conversation using the
// currently active persona.
type SendMessageRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// RenameConversationRequest updates a conversation title.
type RenameConversationRequest struct {
	Title string `json:"title" binding:"required"`
}

// ActivePersonaRequest switches the active persona.
type ActivePersonaRequest struct {
	Persona string `json:"persona" binding:"required"`
	Age     string `json:"age,omitempty"`
	Method  string `json:"method,omitempty"`
}

// ActiveConversationRequest switches the active conversation. A null id
// means no conversation is open.
type ActiveConversationRequest struct {
	ConversationID *string `json:"conversationId"`
}

// Preferences are the two persisted UI flags.
type Preferences struct {
	DarkMode     bool `json:"darkMode"`
	SoundEnabled bool `json:"soundEnabled"`
}

// TurnResult is returned after a dispatched turn settles: the optimistic
// user message plus the assistant reply (or in-thread error message).
type TurnResult struct {
	ConversationID string   `json:"conversation_id"`
	UserMessage    *Message `json:"user_message,omitempty"`
	Reply          Message  `json:"reply"`
	Failed         bool     `json:"failed"`
}

// NewConversationResult is returned by the new-conversation entry point.
type NewConversationResult struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
	Failed       bool         `json:"failed"`
}
