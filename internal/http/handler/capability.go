package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"airoi.app/assessor/internal/capability"
)

type CapabilityHandler struct {
	matrix capability.Matrix
}

func NewCapabilityHandler(matrix capability.Matrix) *CapabilityHandler {
	return &CapabilityHandler{matrix: matrix}
}

func (h *CapabilityHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.matrix)
}
