package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"convertflow/internal/export"
	"convertflow/internal/service"
)

const exportHistoryLimit = 500

// CreditHandler handles the caller's credit balance and ledger endpoints.
type CreditHandler struct {
	creditService service.CreditService
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(creditService service.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// Balance handles GET /api/v1/credits
// @Summary Get credit balance
// @Tags credits
// @Produce json
// @Success 200 {object} APIResponse{data=domain.CreditBalance}
// @Failure 401 {object} APIResponse
// @Failure 503 {object} APIResponse "Credit store unavailable"
// @Security BearerAuth
// @Router /credits [get]
func (h *CreditHandler) Balance(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	balance, err := h.creditService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, balance)
}

// History handles GET /api/v1/credits/history
// @Summary List ledger entries, newest first
// @Tags credits
// @Produce json
// @Param limit query int false "Max entries (default 50, max 500)"
// @Success 200 {object} APIResponse{data=[]domain.CreditTransaction}
// @Security BearerAuth
// @Router /credits/history [get]
func (h *CreditHandler) History(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	txns, err := h.creditService.History(c.Request.Context(), userID, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, txns)
}

// ExportHistory handles GET /api/v1/credits/history/export
// @Summary Download the ledger as a statement
// @Tags credits
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Param format query string false "xlsx (default) or csv"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /credits/history/export [get]
func (h *CreditHandler) ExportHistory(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "xlsx")
	if format != "xlsx" && format != "csv" {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be xlsx or csv")
		return
	}

	ctx := c.Request.Context()
	balance, err := h.creditService.GetBalance(ctx, userID)
	if err != nil {
		HandleError(c, err)
		return
	}
	txns, err := h.creditService.History(ctx, userID, exportHistoryLimit)
	if err != nil {
		HandleError(c, err)
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
	)
	switch format {
	case "csv":
		contentType = "text/csv; charset=utf-8"
		buf.Write(export.BOM)
		w := export.NewWriter(&buf)
		if err := w.WriteHeader(); err != nil {
			HandleError(c, err)
			return
		}
		if err := w.WriteTransactions(txns); err != nil {
			HandleError(c, err)
			return
		}
		w.Flush()
		if err := w.Error(); err != nil {
			HandleError(c, err)
			return
		}
	default:
		contentType = export.ContentTypeXLSX
		if err := export.WriteWorkbook(&buf, balance, txns); err != nil {
			HandleError(c, err)
			return
		}
	}

	filename := export.BuildFilename(userID, format, time.Now().UTC())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
