// Dialogue controller - orchestrates turn-taking with the remote assistant
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ideanator/ideanator/pkg/event"
	"github.com/ideanator/ideanator/pkg/models"
	"github.com/ideanator/ideanator/pkg/utils"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyPrompt          = errors.New("prompt is empty")
	ErrTurnInFlight         = errors.New("a turn is already in flight for this conversation")
)

// DialogueController drives a conversation turn through its states:
// validate, optimistic user-message append, remote exchange, and
// reconciliation of the reply or error back into the ledger and correlator.
// It also owns the transient session state: the active persona (plus its
// extra parameter) and the active conversation selection.
//
// The conversation id is captured at dispatch time, so a reply that resolves
// after the user navigated away, or even deleted the conversation, still
// writes against the id it was dispatched for.
type DialogueController struct {
	registry   *ConversationRegistry
	ledger     *MessageLedger
	correlator *SessionCorrelator
	assistant  Assistant
	logger     *slog.Logger

	mu           sync.Mutex
	persona      models.Persona
	personaParam string
	active       *string
	inFlight     map[string]struct{}
}

// NewDialogueController wires the controller to its owned stores and the
// remote assistant.
func NewDialogueController(registry *ConversationRegistry, ledger *MessageLedger,
	correlator *SessionCorrelator, assistant Assistant) *DialogueController {
	return &DialogueController{
		registry:   registry,
		ledger:     ledger,
		correlator: correlator,
		assistant:  assistant,
		logger:     utils.GetLogger(),
		persona:    models.PersonaDesigner,
		inFlight:   make(map[string]struct{}),
	}
}

// ========== Transient session state ==========

// ActivePersona returns the active persona and its extra parameter.
func (d *DialogueController) ActivePersona() (models.Persona, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.persona, d.personaParam
}

// SwitchPersona changes the active persona. If a conversation is open and
// already has messages, a perspective-change notice is appended to its
// thread. No remote call is made.
func (d *DialogueController) SwitchPersona(p models.Persona, param string) error {
	if err := p.ValidateParam(param); err != nil {
		return err
	}

	d.mu.Lock()
	changed := d.persona != p || d.personaParam != strings.TrimSpace(param)
	d.persona = p
	d.personaParam = strings.TrimSpace(param)
	active := d.active
	d.mu.Unlock()

	if changed && active != nil && d.ledger.Len(*active) > 0 {
		d.appendMessage(*active, models.SenderAssistant, personaNotice(p, param), p)
	}
	if changed {
		event.Emit(event.PersonaChangedEvent{Persona: string(p)})
	}
	return nil
}

// ActiveConversation returns the open conversation id, or nil.
func (d *DialogueController) ActiveConversation() *string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// SwitchConversation opens the given conversation (nil closes the view).
func (d *DialogueController) SwitchConversation(id *string) error {
	if id != nil {
		if _, ok := d.registry.Get(*id); !ok {
			return ErrConversationNotFound
		}
	}
	d.mu.Lock()
	d.active = id
	d.mu.Unlock()

	event.Emit(event.ActiveChangedEvent{ConversationID: id})
	return nil
}

// IsBusy reports whether a remote exchange is outstanding for the
// conversation; the UI disables that conversation's send input while true.
func (d *DialogueController) IsBusy(conversationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, busy := d.inFlight[conversationID]
	return busy
}

// ========== Registry facade ==========

// Rename updates a conversation title; whitespace-only input is a no-op.
func (d *DialogueController) Rename(id, title string) bool {
	if !d.registry.Rename(id, title) {
		return false
	}
	event.Emit(event.ConversationRenamedEvent{ConversationID: id})
	return true
}

// TogglePin flips a conversation's pin flag.
func (d *DialogueController) TogglePin(id string) bool {
	if !d.registry.TogglePin(id) {
		return false
	}
	conv, _ := d.registry.Get(id)
	event.Emit(event.ConversationPinnedEvent{ConversationID: id, Pinned: conv.Pinned})
	return true
}

// DeleteConversation removes the conversation from all three stores in one
// logical step; the correlator entry is pruned synchronously so a deleted
// conversation can never be resumed with a stale session. Deleting a
// non-existent id changes nothing.
func (d *DialogueController) DeleteConversation(id string) bool {
	if !d.registry.Delete(id) {
		return false
	}
	d.ledger.Delete(id)
	d.correlator.Remove(id)

	d.mu.Lock()
	if d.active != nil && *d.active == id {
		d.active = nil
	}
	d.mu.Unlock()

	event.Emit(event.ConversationDeletedEvent{ConversationID: id})
	return true
}

// ========== Turn-taking ==========

// NewConversation creates a conversation from a first prompt and runs the
// first exchange with no session token, forcing a new remote dialogue. The
// prompt and persona parameter are validated before anything is created.
func (d *DialogueController) NewConversation(ctx context.Context, req models.NewConversationRequest) (models.NewConversationResult, error) {
	var result models.NewConversationResult

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return result, ErrEmptyPrompt
	}
	persona := models.Persona(req.Persona)
	param := personaParamFrom(persona, req.Age, req.Method)
	if err := persona.ValidateParam(param); err != nil {
		return result, err
	}

	conv := d.registry.Create(prompt)
	event.Emit(event.ConversationCreatedEvent{ConversationID: conv.ID})

	d.mu.Lock()
	d.active = &conv.ID
	d.mu.Unlock()
	event.Emit(event.ActiveChangedEvent{ConversationID: &conv.ID})

	// The caller already validated the prompt, so the first user message is
	// appended directly.
	d.appendMessage(conv.ID, models.SenderUser, prompt, persona)

	if err := d.beginTurn(conv.ID); err != nil {
		return result, err
	}
	_, failed := d.dispatch(ctx, conv.ID, persona, param, prompt)

	current, ok := d.registry.Get(conv.ID)
	if !ok {
		current = conv
	}
	result.Conversation = current
	result.Messages = d.ledger.Get(conv.ID)
	result.Failed = failed
	return result, nil
}

// SendMessage runs one turn in an existing conversation using the active
// persona. The user message is appended optimistically before the remote
// call; a failure comes back as an in-thread assistant message, never as a
// dropped turn.
func (d *DialogueController) SendMessage(ctx context.Context, conversationID, prompt string) (models.TurnResult, error) {
	var result models.TurnResult
	result.ConversationID = conversationID

	if _, ok := d.registry.Get(conversationID); !ok {
		return result, ErrConversationNotFound
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return result, ErrEmptyPrompt
	}

	d.mu.Lock()
	persona := d.persona
	param := d.personaParam
	d.mu.Unlock()
	if err := persona.ValidateParam(param); err != nil {
		return result, err
	}

	if err := d.beginTurn(conversationID); err != nil {
		return result, err
	}

	userMsg := d.appendMessage(conversationID, models.SenderUser, prompt, persona)
	result.UserMessage = &userMsg

	reply, failed := d.dispatch(ctx, conversationID, persona, param, prompt)
	result.Reply = reply
	result.Failed = failed
	return result, nil
}

// beginTurn claims the in-flight slot for the conversation.
func (d *DialogueController) beginTurn(conversationID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[conversationID]; busy {
		return ErrTurnInFlight
	}
	d.inFlight[conversationID] = struct{}{}
	return nil
}

// dispatch runs the remote exchange for a turn that has already claimed its
// in-flight slot and appended its user message. It always releases the slot,
// always appends exactly one assistant message, and never touches the stored
// session token on failure.
func (d *DialogueController) dispatch(ctx context.Context, conversationID string, persona models.Persona, param, prompt string) (models.Message, bool) {
	event.Emit(event.TurnStartedEvent{ConversationID: conversationID})

	defer func() {
		d.mu.Lock()
		delete(d.inFlight, conversationID)
		d.mu.Unlock()
	}()

	req := models.AssistantRequest{
		Prompt:  persona.DecoratePrompt(prompt, param),
		Persona: string(persona),
	}
	if token, ok := d.correlator.Get(conversationID); ok {
		req.SessionID = &token
	}

	resp, err := d.assistant.Send(ctx, req)
	if err != nil {
		d.logger.Warn("Assistant exchange failed", "conversation", conversationID, "error", err)
		reply := d.appendMessage(conversationID, models.SenderAssistant,
			fmt.Sprintf("The assistant could not respond: %v", err), persona)
		event.Emit(event.TurnFinishedEvent{ConversationID: conversationID, Failed: true})
		return reply, true
	}

	// A token for a conversation deleted while the call was outstanding is
	// discarded; storing it would leak a correlator entry with no owner. The
	// write happens first and is validated after: if the delete's registry
	// removal preceded the check, the entry is removed here; if it follows,
	// the delete cascade's own correlator prune removes it. Either ordering
	// leaves no entry behind.
	if resp.SessionID != "" {
		d.correlator.Set(conversationID, resp.SessionID)
		if _, exists := d.registry.Get(conversationID); !exists {
			d.correlator.Remove(conversationID)
		}
	}

	reply := d.appendMessage(conversationID, models.SenderAssistant,
		persona.Icon()+" "+resp.Response, persona)
	event.Emit(event.TurnFinishedEvent{ConversationID: conversationID, Failed: false})
	return reply, false
}

// appendMessage writes one message into the ledger and refreshes the
// conversation's activity marker. The registry touch is a no-op when the
// conversation no longer exists; the ledger append still succeeds into a
// fresh orphaned sequence.
func (d *DialogueController) appendMessage(conversationID, sender, content string, persona models.Persona) models.Message {
	msg := models.Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().Format("3:04:05 PM"),
		Persona:   persona,
	}
	d.ledger.Append(conversationID, msg)
	d.registry.Touch(conversationID, msg.Timestamp)

	event.Emit(event.MessageAppendedEvent{
		ConversationID: conversationID,
		MessageID:      msg.ID,
		Sender:         sender,
	})
	return msg
}

// personaNotice builds the in-thread notice shown when the perspective
// changes mid-conversation.
func personaNotice(p models.Persona, param string) string {
	param = strings.TrimSpace(param)
	switch p {
	case models.PersonaPlayer:
		return fmt.Sprintf("%s Now responding from a %s-year-old player's perspective.", p.Icon(), param)
	case models.PersonaResearcher:
		return fmt.Sprintf("%s Now responding from a %s research perspective.", p.Icon(), param)
	default:
		return fmt.Sprintf("%s Now responding as a %s.", p.Icon(), p)
	}
}

// personaParamFrom picks the request field that matches the persona's
// required parameter.
func personaParamFrom(p models.Persona, age, method string) string {
	switch p {
	case models.PersonaPlayer:
		return age
	case models.PersonaResearcher:
		return method
	default:
		return ""
	}
}
