// Package rest exposes the lead agent over a JSON API.
package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	"github.com/Chative-lead-agent/server/internal/dispatch"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// PhaseOverrider moves a conversation to a later phase.
type PhaseOverrider interface {
	OverridePhase(ctx context.Context, conversationID string, to model.Phase) (*model.AgentState, error)
}

// Handler handles HTTP requests for conversations.
type Handler struct {
	dispatcher dispatch.Dispatcher
	store      model.Store
	phases     PhaseOverrider
	val        *validator.Validate
	now        model.Clock
}

func NewHandler(d dispatch.Dispatcher, store model.Store, phases PhaseOverrider) *Handler {
	return &Handler{dispatcher: d, store: store, phases: phases, val: validator.New(), now: time.Now}
}

type postMessageRequest struct {
	MessageID     string `json:"messageId" validate:"omitempty,max=128"`
	CustomerID    string `json:"customerId" validate:"omitempty,max=128"`
	CustomerName  string `json:"customerName" validate:"omitempty,max=200"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
	Text          string `json:"text" validate:"required,max=8000"`
}

type acceptedResponse struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
	Status         string `json:"status"`
}

// PostMessage accepts a customer message for processing.
// POST /v1/conversations/:id/messages
func (h *Handler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	in := model.InboundMessage{
		ConversationID: strings.TrimSpace(c.Param("id")),
		MessageID:      req.MessageID,
		CustomerID:     req.CustomerID,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		Text:           strings.TrimSpace(req.Text),
		ArrivalTime:    h.now().UTC(),
	}
	if err := h.val.Struct(in); err != nil {
		writeError(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if handleError(c, h.dispatcher.Dispatch(c.Request.Context(), in)) {
		return
	}
	c.JSON(http.StatusAccepted, acceptedResponse{ConversationID: in.ConversationID, MessageID: in.MessageID, Status: "accepted"})
}

// GetLead returns the lead of a conversation.
// GET /v1/conversations/:id/lead
func (h *Handler) GetLead(c *gin.Context) {
	lead, err := h.store.GetLead(c.Request.Context(), c.Param("id"))
	if handleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, lead)
}

// GetState returns the agent state of a conversation.
// GET /v1/conversations/:id/state
func (h *Handler) GetState(c *gin.Context) {
	st, err := h.store.GetState(c.Request.Context(), c.Param("id"))
	if handleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, st)
}

// ListMessages returns the outbound log.
// GET /v1/conversations/:id/messages
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.store.ListOutbound(c.Request.Context(), c.Param("id"))
	if handleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": msgs})
}

// ListAppointments returns the confirmed bookings.
// GET /v1/conversations/:id/appointments
func (h *Handler) ListAppointments(c *gin.Context) {
	appts, err := h.store.ListAppointments(c.Request.Context(), c.Param("id"))
	if handleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": appts})
}

type overridePhaseRequest struct {
	Phase string `json:"phase" validate:"required"`
}

// OverridePhase lets an operator move a conversation forward.
// PUT /v1/conversations/:id/phase
func (h *Handler) OverridePhase(c *gin.Context) {
	var req overridePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	to, err := model.ParsePhase(req.Phase)
	if handleError(c, err) {
		return
	}

	st, err := h.phases.OverridePhase(c.Request.Context(), c.Param("id"), to)
	if handleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, st)
}
