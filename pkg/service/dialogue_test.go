package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ideanator/ideanator/pkg/models"
)

// fakeAssistant records requests and replies with a scripted response or
// error. When block is set, Send signals started and then waits, which lets
// a test interleave other operations with an outstanding call.
type fakeAssistant struct {
	mu       sync.Mutex
	requests []models.AssistantRequest

	resp    models.AssistantResponse
	err     error
	block   chan struct{}
	started chan struct{}
	onSend  func()
}

func (f *fakeAssistant) Send(_ context.Context, req models.AssistantRequest) (models.AssistantResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	resp, err, block, started, onSend := f.resp, f.err, f.block, f.started, f.onSend
	f.mu.Unlock()

	if onSend != nil {
		onSend()
	}
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return resp, err
}

func (f *fakeAssistant) lastRequest(t *testing.T) models.AssistantRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatalf("assistant was never called")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeAssistant) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fixture struct {
	registry   *ConversationRegistry
	ledger     *MessageLedger
	correlator *SessionCorrelator
	assistant  *fakeAssistant
	controller *DialogueController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newTestStore(t)
	f := &fixture{
		registry:   NewConversationRegistry(store),
		ledger:     NewMessageLedger(store),
		correlator: NewSessionCorrelator(store),
		assistant:  &fakeAssistant{},
	}
	f.controller = NewDialogueController(f.registry, f.ledger, f.correlator, f.assistant)
	return f
}

func TestNewConversation_PlayerDecoration(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "try a farm full of zombies", SessionID: "sess-1"}

	result, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Player",
		Prompt:  "zombie survival",
		Age:     "10",
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	if result.Failed {
		t.Fatalf("turn reported failed")
	}

	req := f.assistant.lastRequest(t)
	if req.Prompt != "[From a 10-year-old player's perspective] zombie survival" {
		t.Fatalf("dispatched prompt = %q", req.Prompt)
	}
	if req.SessionID != nil {
		t.Fatalf("first call must carry no session token, got %q", *req.SessionID)
	}
	if req.Persona != "Game Player" {
		t.Fatalf("dispatched persona = %q", req.Persona)
	}

	// The returned token is retrievable immediately after resolution.
	token, ok := f.correlator.Get(result.Conversation.ID)
	if !ok || token != "sess-1" {
		t.Fatalf("correlator token = (%q, %v), want sess-1", token, ok)
	}

	if len(result.Messages) != 2 {
		t.Fatalf("thread has %d messages, want user + assistant", len(result.Messages))
	}
	if result.Messages[0].Sender != models.SenderUser || result.Messages[0].Content != "zombie survival" {
		t.Fatalf("user message = %+v; the ledger stores the raw typed text", result.Messages[0])
	}
	reply := result.Messages[1]
	if reply.Sender != models.SenderAssistant {
		t.Fatalf("reply sender = %q", reply.Sender)
	}
	if reply.Content != "🎯 try a farm full of zombies" {
		t.Fatalf("reply content = %q, want glyph-prefixed response", reply.Content)
	}

	if result.Conversation.Title != "zombie survival" {
		t.Fatalf("conversation title = %q", result.Conversation.Title)
	}
	active := f.controller.ActiveConversation()
	if active == nil || *active != result.Conversation.ID {
		t.Fatalf("new conversation should become active")
	}
}

func TestNewConversation_MissingAgeRejectedBeforeAnyAppend(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Player",
		Prompt:  "zombie survival",
	})
	if !errors.Is(err, models.ErrPersonaParamMissing) {
		t.Fatalf("NewConversation() error = %v, want ErrPersonaParamMissing", err)
	}
	if got := len(f.registry.List("")); got != 0 {
		t.Fatalf("rejection must not create a conversation, registry has %d", got)
	}
	if f.assistant.calls() != 0 {
		t.Fatalf("rejection must not contact the assistant")
	}
}

func TestNewConversation_EmptyPromptRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer",
		Prompt:  "   ",
	})
	if !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("NewConversation() error = %v, want ErrEmptyPrompt", err)
	}
}

func TestSendMessage_ReusesStoredToken(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "ok", SessionID: "sess-1"}

	result, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer",
		Prompt:  "co-op farming",
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}

	// Second turn: no fresh token from upstream, stored one is reused as-is.
	f.assistant.resp = models.AssistantResponse{Response: "sure"}
	if _, err := f.controller.SendMessage(context.Background(), result.Conversation.ID, "add seasons"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	req := f.assistant.lastRequest(t)
	if req.SessionID == nil || *req.SessionID != "sess-1" {
		t.Fatalf("second call token = %v, want sess-1", req.SessionID)
	}
	if req.Prompt != "add seasons" {
		t.Fatalf("designer persona must send raw text, got %q", req.Prompt)
	}

	// The token survives a reply that carried none.
	if token, _ := f.correlator.Get(result.Conversation.ID); token != "sess-1" {
		t.Fatalf("token after second turn = %q", token)
	}
}

func TestSendMessage_FailureAppendsErrorAndKeepsToken(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "ok", SessionID: "sess-1"}

	result, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer",
		Prompt:  "roguelike deckbuilder",
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	convID := result.Conversation.ID
	before := f.ledger.Len(convID)

	f.assistant.resp = models.AssistantResponse{}
	f.assistant.err = errors.New("upstream agent unavailable")

	turn, err := f.controller.SendMessage(context.Background(), convID, "more synergies")
	if err != nil {
		t.Fatalf("SendMessage() error = %v; failures surface in-thread, not as errors", err)
	}
	if !turn.Failed {
		t.Fatalf("turn should report failure")
	}

	msgs := f.ledger.Get(convID)
	if len(msgs) != before+2 {
		t.Fatalf("ledger grew by %d, want user message + exactly one error reply", len(msgs)-before)
	}
	last := msgs[len(msgs)-1]
	if last.Sender != models.SenderAssistant {
		t.Fatalf("error message sender = %q", last.Sender)
	}
	if !strings.Contains(last.Content, "upstream agent unavailable") {
		t.Fatalf("error message %q does not carry the error text", last.Content)
	}

	// A failed call never overwrites the stored session token.
	if token, _ := f.correlator.Get(convID); token != "sess-1" {
		t.Fatalf("token after failure = %q, want sess-1", token)
	}
}

func TestSendMessage_ValidationLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "ok"}

	result, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer",
		Prompt:  "puzzle platformer",
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	convID := result.Conversation.ID
	before := f.ledger.Len(convID)
	calls := f.assistant.calls()

	if _, err := f.controller.SendMessage(context.Background(), convID, "  \n "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("SendMessage() error = %v, want ErrEmptyPrompt", err)
	}
	if f.ledger.Len(convID) != before {
		t.Fatalf("rejected send appended a message")
	}
	if f.assistant.calls() != calls {
		t.Fatalf("rejected send contacted the assistant")
	}

	if _, err := f.controller.SendMessage(context.Background(), "no-such-id", "hello"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("SendMessage() error = %v, want ErrConversationNotFound", err)
	}
}

func TestSendMessage_RejectsOverlappingTurn(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "ok"}

	result, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer",
		Prompt:  "tower defense",
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	convID := result.Conversation.ID

	f.assistant.mu.Lock()
	f.assistant.block = make(chan struct{})
	f.assistant.started = make(chan struct{}, 1)
	f.assistant.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.controller.SendMessage(context.Background(), convID, "first turn")
	}()
	<-f.assistant.started

	if !f.controller.IsBusy(convID) {
		t.Fatalf("IsBusy() = false while a call is outstanding")
	}
	if _, err := f.controller.SendMessage(context.Background(), convID, "second turn"); !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("overlapping SendMessage() error = %v, want ErrTurnInFlight", err)
	}

	close(f.assistant.block)
	<-done

	if f.controller.IsBusy(convID) {
		t.Fatalf("IsBusy() = true after the turn settled")
	}
}

func TestDeleteDuringFlight_OrphanedReplyIsHarmless(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "ok"}

	a, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer", Prompt: "conversation A",
	})
	if err != nil {
		t.Fatalf("NewConversation(A) error = %v", err)
	}
	b, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer", Prompt: "conversation B",
	})
	if err != nil {
		t.Fatalf("NewConversation(B) error = %v", err)
	}
	bMessages := f.ledger.Len(b.Conversation.ID)

	f.assistant.mu.Lock()
	f.assistant.resp = models.AssistantResponse{Response: "ok", SessionID: "sess-late"}
	f.assistant.block = make(chan struct{})
	f.assistant.started = make(chan struct{}, 1)
	f.assistant.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.controller.SendMessage(context.Background(), a.Conversation.ID, "still there?")
	}()
	<-f.assistant.started

	// User switches to B and deletes A while A's call is outstanding.
	if err := f.controller.SwitchConversation(&b.Conversation.ID); err != nil {
		t.Fatalf("SwitchConversation(B) error = %v", err)
	}
	if !f.controller.DeleteConversation(a.Conversation.ID) {
		t.Fatalf("DeleteConversation(A) = false")
	}

	close(f.assistant.block)
	<-done

	// The late reply landed in a fresh orphaned sequence under A's id.
	orphan := f.ledger.Get(a.Conversation.ID)
	if len(orphan) != 1 || orphan[0].Sender != models.SenderAssistant {
		t.Fatalf("orphaned sequence = %v, want the single late reply", orphan)
	}
	if _, ok := f.registry.Get(a.Conversation.ID); ok {
		t.Fatalf("registry record for A came back")
	}
	if _, ok := f.correlator.Get(a.Conversation.ID); ok {
		t.Fatalf("late token resurrected a correlator entry for a deleted conversation")
	}

	// B is untouched and still active.
	if got := f.ledger.Len(b.Conversation.ID); got != bMessages {
		t.Fatalf("B's ledger changed: %d messages, want %d", got, bMessages)
	}
	active := f.controller.ActiveConversation()
	if active == nil || *active != b.Conversation.ID {
		t.Fatalf("active selection = %v, want B", active)
	}
}

func TestDeleteCompletingDuringCall_DiscardsToken(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "ok"}

	result, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer", Prompt: "short-lived idea",
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	convID := result.Conversation.ID

	// The delete cascade runs to completion while the assistant call is
	// outstanding, and the reply still carries a fresh token.
	f.assistant.mu.Lock()
	f.assistant.resp = models.AssistantResponse{Response: "ok", SessionID: "sess-late"}
	f.assistant.onSend = func() {
		if !f.controller.DeleteConversation(convID) {
			t.Errorf("DeleteConversation() = false")
		}
	}
	f.assistant.mu.Unlock()

	if _, err := f.controller.SendMessage(context.Background(), convID, "still there?"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if token, ok := f.correlator.Get(convID); ok {
		t.Fatalf("late token %q left a correlator entry for a deleted conversation", token)
	}
	if _, ok := f.registry.Get(convID); ok {
		t.Fatalf("registry record came back")
	}
}

func TestSwitchPersona_AppendsNoticeToOpenThread(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "ok"}

	result, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer",
		Prompt:  "city builder",
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	convID := result.Conversation.ID
	before := f.ledger.Len(convID)

	if err := f.controller.SwitchPersona(models.PersonaPlayer, "10"); err != nil {
		t.Fatalf("SwitchPersona() error = %v", err)
	}

	msgs := f.ledger.Get(convID)
	if len(msgs) != before+1 {
		t.Fatalf("expected one notice message, ledger grew by %d", len(msgs)-before)
	}
	notice := msgs[len(msgs)-1]
	if notice.Sender != models.SenderAssistant {
		t.Fatalf("notice sender = %q", notice.Sender)
	}
	if !strings.Contains(notice.Content, "10-year-old") || !strings.Contains(notice.Content, "🎯") {
		t.Fatalf("notice %q should describe the new perspective and its parameter", notice.Content)
	}
	if f.assistant.calls() != 1 {
		t.Fatalf("persona switch must not contact the assistant")
	}

	// Switching to the same persona again is a pure no-op.
	if err := f.controller.SwitchPersona(models.PersonaPlayer, "10"); err != nil {
		t.Fatalf("SwitchPersona() error = %v", err)
	}
	if f.ledger.Len(convID) != before+1 {
		t.Fatalf("repeated switch appended another notice")
	}
}

func TestSwitchPersona_NoNoticeWithoutOpenThread(t *testing.T) {
	f := newFixture(t)

	if err := f.controller.SwitchPersona(models.PersonaResearcher, models.MethodQualitative); err != nil {
		t.Fatalf("SwitchPersona() error = %v", err)
	}

	persona, param := f.controller.ActivePersona()
	if persona != models.PersonaResearcher || param != models.MethodQualitative {
		t.Fatalf("active persona = (%q, %q)", persona, param)
	}
}

func TestSwitchPersona_InvalidParamRejected(t *testing.T) {
	f := newFixture(t)

	if err := f.controller.SwitchPersona(models.PersonaResearcher, "anecdotal"); !errors.Is(err, models.ErrPersonaParamMissing) {
		t.Fatalf("SwitchPersona() error = %v, want ErrPersonaParamMissing", err)
	}
	if persona, _ := f.controller.ActivePersona(); persona != models.PersonaDesigner {
		t.Fatalf("rejected switch changed the active persona to %q", persona)
	}
}

func TestSwitchConversation_Validation(t *testing.T) {
	f := newFixture(t)

	if err := f.controller.SwitchConversation(nil); err != nil {
		t.Fatalf("SwitchConversation(nil) error = %v", err)
	}

	unknown := "no-such-id"
	if err := f.controller.SwitchConversation(&unknown); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("SwitchConversation() error = %v, want ErrConversationNotFound", err)
	}
}

func TestDeleteConversation_CascadesAndClearsActive(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "ok", SessionID: "sess-1"}

	result, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer",
		Prompt:  "doomed idea",
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	convID := result.Conversation.ID

	if !f.controller.DeleteConversation(convID) {
		t.Fatalf("DeleteConversation() = false")
	}

	if _, ok := f.registry.Get(convID); ok {
		t.Fatalf("registry record survived delete")
	}
	if f.ledger.Len(convID) != 0 {
		t.Fatalf("ledger entries survived delete")
	}
	if _, ok := f.correlator.Get(convID); ok {
		t.Fatalf("correlator entry survived delete")
	}
	if f.controller.ActiveConversation() != nil {
		t.Fatalf("active selection should be cleared by deleting the active conversation")
	}

	if f.controller.DeleteConversation(convID) {
		t.Fatalf("second delete should be a no-op")
	}
}

func TestRename_WhitespaceLeavesTitleUnchanged(t *testing.T) {
	f := newFixture(t)
	f.assistant.resp = models.AssistantResponse{Response: "ok"}

	result, err := f.controller.NewConversation(context.Background(), models.NewConversationRequest{
		Persona: "Game Designer",
		Prompt:  "original name",
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}

	if f.controller.Rename(result.Conversation.ID, "   ") {
		t.Fatalf("Rename() with whitespace = true, want no-op")
	}
	conv, _ := f.registry.Get(result.Conversation.ID)
	if conv.Title != "original name" {
		t.Fatalf("title = %q after whitespace rename", conv.Title)
	}
}
