package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airoi.app/assessor/internal/http/handler"
	"airoi.app/assessor/internal/service"
)

type RouterConfig struct {
	ServiceName string
	Version     string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		capabilityHandler := handler.NewCapabilityHandler(services.Capabilities())
		v1.GET("/capabilities", capabilityHandler.List)

		sessionHandler := handler.NewSessionHandler(services.Sessions())
		assessmentHandler := handler.NewAssessmentHandler(services.Assessments())
		SessionRouter(v1.Group("/sessions"), sessionHandler, assessmentHandler)
		AssessmentRouter(v1.Group("/assessments"), assessmentHandler)
	}
}
