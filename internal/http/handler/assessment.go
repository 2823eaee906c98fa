package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"airoi.app/assessor/internal/http/dto"
	"airoi.app/assessor/internal/report"
	"airoi.app/assessor/internal/service"
)

type AssessmentHandler struct {
	assessmentService service.AssessmentService
}

func NewAssessmentHandler(assessmentService service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessmentService: assessmentService}
}

// Request answers 202; the pipeline runs on the worker.
func (h *AssessmentHandler) Request(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	assessment, err := h.assessmentService.Request(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err, "request assessment")
		return
	}

	c.JSON(http.StatusAccepted, dto.AssessmentRequestedResponse{
		AssessmentID: assessment.ID,
		Status:       string(assessment.Status),
	})
}

func (h *AssessmentHandler) Latest(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	assessment, err := h.assessmentService.Latest(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err, "get assessment")
		return
	}

	c.JSON(http.StatusOK, dto.ToAssessmentResponse(assessment))
}

func (h *AssessmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	assessment, err := h.assessmentService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "get assessment")
		return
	}

	c.JSON(http.StatusOK, dto.ToAssessmentResponse(assessment))
}

func (h *AssessmentHandler) Report(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.assessmentService.Report(c.Request.Context(), id, format)
	if err != nil {
		respondError(c, err, "render report")
		return
	}

	c.Data(http.StatusOK, format.ContentType(), out)
}
