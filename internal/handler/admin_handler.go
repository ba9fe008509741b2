package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"convertflow/internal/domain"
	"convertflow/internal/guardrail"
	"convertflow/internal/middleware"
	"convertflow/internal/port"
	"convertflow/internal/qa"
	"convertflow/internal/service"
)

// EmergencyDisableRequest is the body of POST /admin/flags/emergency-disable.
type EmergencyDisableRequest struct {
	Reason string `json:"reason" binding:"required" example:"Adobe invoice spike"`
}

// SetAdobeRequest is the body of PUT /admin/flags/adobe.
type SetAdobeRequest struct {
	Enabled *bool  `json:"enabled" binding:"required" example:"true"`
	Reason  string `json:"reason" example:"incident resolved"`
}

// GrantCreditsRequest is the body of POST /admin/credits/:user_id.
type GrantCreditsRequest struct {
	Amount float64 `json:"amount" binding:"required" example:"100"`
	Reason string  `json:"reason" binding:"required" example:"purchase #1042"`
}

// AdminHandler handles operator endpoints for guardrails, credits and QA audit.
type AdminHandler struct {
	guard         *guardrail.Guard
	creditService service.CreditService
	validator     *qa.Validator
	audit         port.QAAuditRepository
}

// NewAdminHandler creates a new AdminHandler. audit may be nil, in which case
// QA history is served from the in-memory ring.
func NewAdminHandler(guard *guardrail.Guard, creditService service.CreditService, validator *qa.Validator, audit port.QAAuditRepository) *AdminHandler {
	return &AdminHandler{guard: guard, creditService: creditService, validator: validator, audit: audit}
}

// Flags handles GET /api/v1/admin/flags
// @Summary Current guardrail flags
// @Tags admin
// @Produce json
// @Success 200 {object} APIResponse{data=guardrail.FlagsSnapshot}
// @Security BearerAuth
// @Router /admin/flags [get]
func (h *AdminHandler) Flags(c *gin.Context) {
	RespondOK(c, h.guard.Flags().Snapshot())
}

// EmergencyDisable handles POST /api/v1/admin/flags/emergency-disable
// @Summary Turn the expensive engine off immediately
// @Tags admin
// @Accept json
// @Produce json
// @Param body body EmergencyDisableRequest true "Reason"
// @Success 200 {object} APIResponse{data=guardrail.FlagsSnapshot}
// @Security BearerAuth
// @Router /admin/flags/emergency-disable [post]
func (h *AdminHandler) EmergencyDisable(c *gin.Context) {
	var req EmergencyDisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "reason is required")
		return
	}
	h.guard.EmergencyDisable(req.Reason)
	RespondOK(c, h.guard.Flags().Snapshot())
}

// SetAdobe handles PUT /api/v1/admin/flags/adobe
// @Summary Enable or disable the expensive engine
// @Tags admin
// @Accept json
// @Produce json
// @Param body body SetAdobeRequest true "Switch state"
// @Success 200 {object} APIResponse{data=guardrail.FlagsSnapshot}
// @Security BearerAuth
// @Router /admin/flags/adobe [put]
func (h *AdminHandler) SetAdobe(c *gin.Context) {
	var req SetAdobeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "enabled is required")
		return
	}
	if *req.Enabled {
		h.guard.Enable()
	} else {
		reason := req.Reason
		if reason == "" {
			reason = "disabled by " + c.GetString(middleware.ContextKeyUserID)
		}
		h.guard.EmergencyDisable(reason)
	}
	RespondOK(c, h.guard.Flags().Snapshot())
}

// GrantCredits handles POST /api/v1/admin/credits/:user_id
// @Summary Add credits to a user
// @Tags admin
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param body body GrantCreditsRequest true "Grant"
// @Success 201 {object} APIResponse{data=domain.CreditMutation}
// @Failure 400 {object} APIResponse "Invalid amount"
// @Security BearerAuth
// @Router /admin/credits/{user_id} [post]
func (h *AdminHandler) GrantCredits(c *gin.Context) {
	var req GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "amount and reason are required")
		return
	}
	adminID, ok := extractUserID(c)
	if !ok {
		return
	}

	mutation, err := h.creditService.Add(c.Request.Context(), c.Param("user_id"), req.Amount, req.Reason,
		domain.TransactionMetadata{GrantedBy: adminID})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, mutation)
}

// QAHistory handles GET /api/v1/admin/qa/history
// @Summary Recent QA verdicts, newest first
// @Tags admin
// @Produce json
// @Param limit query int false "Max entries (default 100)"
// @Success 200 {object} APIResponse{data=[]domain.QAValidationResult}
// @Security BearerAuth
// @Router /admin/qa/history [get]
func (h *AdminHandler) QAHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}

	if h.audit == nil {
		RespondOK(c, h.validator.History(limit))
		return
	}
	results, err := h.audit.ListRecent(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, results)
}
