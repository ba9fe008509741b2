package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"convertflow/internal/domain"
	"convertflow/internal/middleware"
	"convertflow/internal/service"
)

// ConversionHandler handles document analysis and conversion endpoints.
type ConversionHandler struct {
	conversionService service.ConversionService
	maxUploadBytes    int64
	requestTimeout    time.Duration
}

// NewConversionHandler creates a new ConversionHandler. requestTimeout bounds
// each analyze or convert call; zero leaves only the client's context.
func NewConversionHandler(conversionService service.ConversionService, maxUploadBytes int64, requestTimeout time.Duration) *ConversionHandler {
	return &ConversionHandler{
		conversionService: conversionService,
		maxUploadBytes:    maxUploadBytes,
		requestTimeout:    requestTimeout,
	}
}

func (h *ConversionHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.requestTimeout)
}

// Analyze handles POST /api/v1/documents/analyze
// @Summary Analyze a document
// @Description Classify a PDF and report free or premium eligibility without converting it
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF document"
// @Success 200 {object} APIResponse{data=service.AnalyzeResult}
// @Failure 400 {object} APIResponse "Missing file or not a PDF"
// @Failure 413 {object} APIResponse "File too large"
// @Failure 422 {object} APIResponse "Unreadable PDF"
// @Router /documents/analyze [post]
func (h *ConversionHandler) Analyze(c *gin.Context) {
	input, ok := h.readInput(c)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.conversionService.Analyze(ctx, input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// Convert handles POST /api/v1/documents/convert
// @Summary Convert a document
// @Description Route, admit, convert, bill and validate one PDF
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF document"
// @Param premium_opt_in formData bool false "Allow escalation to the expensive engine"
// @Param require_expensive formData bool false "Fail instead of converting with the routed engine when escalation is rejected"
// @Success 200 {object} APIResponse{data=domain.ConversionResult}
// @Failure 402 {object} APIResponse "Insufficient credits"
// @Failure 403 {object} APIResponse "Tier limit or guardrail rejection"
// @Failure 422 {object} APIResponse "Unreadable PDF or blocked by QA"
// @Failure 502 {object} APIResponse "Engine failure"
// @Failure 503 {object} APIResponse "Credit store unavailable"
// @Failure 504 {object} APIResponse "Engine timeout"
// @Security BearerAuth
// @Router /documents/convert [post]
func (h *ConversionHandler) Convert(c *gin.Context) {
	input, ok := h.readInput(c)
	if !ok {
		return
	}

	var err error
	if input.PremiumOptIn, err = formBool(c, "premium_opt_in"); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "premium_opt_in must be a boolean")
		return
	}
	if input.RequireExpensive, err = formBool(c, "require_expensive"); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "require_expensive must be a boolean")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.conversionService.Convert(ctx, input)
	if err != nil {
		HandleError(c, err)
		return
	}

	if result.Blocked {
		c.JSON(http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Data:    result,
			Error: &APIError{
				Code:    "QA_BLOCKED",
				Message: domain.ErrQABlocked.Error(),
				Detail:  string(result.QA.Status),
			},
		})
		return
	}
	RespondOK(c, result)
}

// readInput reads the uploaded PDF and the caller identity.
// Returns false if the request is invalid (error response already written).
func (h *ConversionHandler) readInput(c *gin.Context) (*service.ConvertInput, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return nil, false
	}
	defer func() { _ = file.Close() }()

	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		HandleError(c, domain.ErrFileTooLarge)
		return nil, false
	}
	var reader io.Reader = file
	if h.maxUploadBytes > 0 {
		reader = io.LimitReader(file, h.maxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		HandleError(c, fmt.Errorf("reading upload: %w", err))
		return nil, false
	}
	if h.maxUploadBytes > 0 && int64(len(data)) > h.maxUploadBytes {
		HandleError(c, domain.ErrFileTooLarge)
		return nil, false
	}

	input := &service.ConvertInput{
		DocumentName:    header.Filename,
		FileBytes:       data,
		IsAuthenticated: middleware.IsAuthenticated(c),
	}
	if input.IsAuthenticated {
		userID, ok := extractUserID(c)
		if !ok {
			return nil, false
		}
		input.UserID = userID
	}
	return input, true
}

func formBool(c *gin.Context, key string) (bool, error) {
	raw := c.PostForm(key)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
