// Chat HTTP handlers - the surface the browser UI talks to
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideanator/ideanator/pkg/models"
	"github.com/ideanator/ideanator/pkg/service"
)

// ChatHandler handles conversation, message, persona and preference requests.
type ChatHandler struct {
	controller *service.DialogueController
	registry   *service.ConversationRegistry
	ledger     *service.MessageLedger
	prefs      *service.PreferencesService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(controller *service.DialogueController, registry *service.ConversationRegistry,
	ledger *service.MessageLedger, prefs *service.PreferencesService) *ChatHandler {
	return &ChatHandler{
		controller: controller,
		registry:   registry,
		ledger:     ledger,
		prefs:      prefs,
	}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	conversations := r.Group("/conversations")
	{
		conversations.GET("", h.ListConversations)
		conversations.POST("", h.NewConversation)
		conversations.PUT("/:id/title", h.RenameConversation)
		conversations.POST("/:id/pin", h.TogglePin)
		conversations.DELETE("/:id", h.DeleteConversation)
		conversations.GET("/:id/messages", h.GetMessages)
		conversations.POST("/:id/messages", h.SendMessage)
	}

	r.GET("/personas", h.ListPersonas)
	r.GET("/persona", h.GetActivePersona)
	r.PUT("/persona", h.SwitchPersona)

	r.GET("/active", h.GetActiveConversation)
	r.PUT("/active", h.SwitchConversation)

	r.GET("/preferences", h.GetPreferences)
	r.PUT("/preferences", h.SetPreferences)
}

// ListConversations lists conversations, pinned first.
// GET /api/conversations?search=foo
func (h *ChatHandler) ListConversations(c *gin.Context) {
	conversations := h.registry.List(c.Query("search"))
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// NewConversation starts a new conversation from a first prompt.
// POST /api/conversations
func (h *ChatHandler) NewConversation(c *gin.Context) {
	var req models.NewConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.controller.NewConversation(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, result)
}

// RenameConversation updates a conversation title. A whitespace-only title
// is rejected before it reaches the registry.
// PUT /api/conversations/:id/title
func (h *ChatHandler) RenameConversation(c *gin.Context) {
	var req models.RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	renamed := h.controller.Rename(c.Param("id"), req.Title)
	c.JSON(http.StatusOK, gin.H{"renamed": renamed})
}

// TogglePin flips the pinned flag. Toggling an id that no longer exists is
// a no-op, not an error, same as delete.
// POST /api/conversations/:id/pin
func (h *ChatHandler) TogglePin(c *gin.Context) {
	id := c.Param("id")
	if !h.controller.TogglePin(id) {
		c.JSON(http.StatusOK, gin.H{"toggled": false})
		return
	}
	conv, _ := h.registry.Get(id)
	c.JSON(http.StatusOK, gin.H{"toggled": true, "conversation": conv})
}

// DeleteConversation removes a conversation and everything keyed by its id.
// Deleting an id that no longer exists is a no-op, not an error.
// DELETE /api/conversations/:id
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	deleted := h.controller.DeleteConversation(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// GetMessages returns the conversation's messages in append order.
// GET /api/conversations/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages := h.ledger.Get(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage runs one turn with the active persona. While a turn is in
// flight for the conversation, further sends are rejected with 409.
// POST /api/conversations/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.controller.SendMessage(c.Request.Context(), c.Param("id"), req.Prompt)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListPersonas returns the persona catalog for the UI.
// GET /api/personas
func (h *ChatHandler) ListPersonas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"personas": models.Personas()})
}

// GetActivePersona returns the active persona and its parameter.
// GET /api/persona
func (h *ChatHandler) GetActivePersona(c *gin.Context) {
	persona, param := h.controller.ActivePersona()
	c.JSON(http.StatusOK, gin.H{"persona": persona, "param": param})
}

// SwitchPersona changes the active persona; switching while the open
// conversation has messages drops a perspective notice into its thread.
// PUT /api/persona
func (h *ChatHandler) SwitchPersona(c *gin.Context) {
	var req models.ActivePersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	persona := models.Persona(req.Persona)
	param := req.Age
	if persona == models.PersonaResearcher {
		param = req.Method
	}
	if err := h.controller.SwitchPersona(persona, param); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"persona": persona, "param": param})
}

// GetActiveConversation returns the open conversation id, or null.
// GET /api/active
func (h *ChatHandler) GetActiveConversation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conversationId": h.controller.ActiveConversation()})
}

// SwitchConversation opens a conversation (or closes the view with null).
// PUT /api/active
func (h *ChatHandler) SwitchConversation(c *gin.Context) {
	var req models.ActiveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.SwitchConversation(req.ConversationID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": req.ConversationID})
}

// GetPreferences returns the persisted UI flags.
// GET /api/preferences
func (h *ChatHandler) GetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, h.prefs.Get())
}

// SetPreferences replaces the persisted UI flags.
// PUT /api/preferences
func (h *ChatHandler) SetPreferences(c *gin.Context) {
	var prefs models.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.prefs.Set(prefs)
	c.JSON(http.StatusOK, prefs)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTurnInFlight):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptyPrompt),
		errors.Is(err, models.ErrPersonaParamMissing),
		errors.Is(err, models.ErrUnknownPersona):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
