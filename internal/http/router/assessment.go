package router

import (
	"github.com/gin-gonic/gin"

	"airoi.app/assessor/internal/http/handler"
)

func AssessmentRouter(rg *gin.RouterGroup, h *handler.AssessmentHandler) {
	rg.GET("/:id", h.Get)
	rg.GET("/:id/report", h.Report)
}
