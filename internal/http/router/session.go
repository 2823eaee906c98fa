package router

import (
	"github.com/gin-gonic/gin"

	"airoi.app/assessor/internal/http/handler"
)

// SessionRouter sets up session, conversation and per-session assessment routes.
func SessionRouter(rg *gin.RouterGroup, h *handler.SessionHandler, ah *handler.AssessmentHandler) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/start-discovery", h.StartDiscovery)
	rg.POST("/:id/chat", h.Chat)
	rg.GET("/:id/conversation", h.Conversation)

	rg.POST("/:id/assessments", ah.Request)
	rg.GET("/:id/assessment", ah.Latest)
}
