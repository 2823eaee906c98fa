package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"airoi.app/assessor/internal/http/dto"
	"airoi.app/assessor/internal/service"
)

type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionService.Create(ctx, req.CompanyName)
	if err != nil {
		respondError(c, err, "create session")
		return
	}

	c.JSON(http.StatusCreated, dto.ToSessionResponse(session))
}

func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "get session")
		return
	}

	c.JSON(http.StatusOK, dto.ToSessionResponse(session))
}

func (h *SessionHandler) StartDiscovery(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	msg, err := h.sessionService.StartDiscovery(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "start discovery")
		return
	}

	c.JSON(http.StatusOK, dto.ToMessageResponse(msg))
}

func (h *SessionHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.sessionService.Chat(ctx, id, req.Content)
	if err != nil {
		respondError(c, err, "continue discovery")
		return
	}

	c.JSON(http.StatusOK, dto.ToMessageResponse(msg))
}

func (h *SessionHandler) Conversation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	turns, err := h.sessionService.Conversation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "load conversation")
		return
	}

	c.JSON(http.StatusOK, dto.ToConversationResponse(id, turns))
}
