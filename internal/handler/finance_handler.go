package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-finance-api/internal/service"
	appErrors "github.com/noah-isme/sma-finance-api/pkg/errors"
	"github.com/noah-isme/sma-finance-api/pkg/response"
)

// FinanceHandler exposes the read side of the reconciliation core: financial
// summaries, clearance standing, the fee matrix and statement downloads.
type FinanceHandler struct {
	ledger     *service.LedgerService
	status     *service.StatusService
	matrix     *service.MatrixService
	statements *service.StatementService
}

// NewFinanceHandler creates a new handler. statements may be nil when
// statement downloads are disabled.
func NewFinanceHandler(ledger *service.LedgerService, status *service.StatusService, matrix *service.MatrixService, statements *service.StatementService) *FinanceHandler {
	return &FinanceHandler{ledger: ledger, status: status, matrix: matrix, statements: statements}
}

// Summary godoc
// @Summary Get a student's financial summary
// @Description Reconcile the student's ledger and return totals, mode and clearance figures
// @Tags Finance
// @Produce json
// @Param id path string true "Student ID"
// @Param refresh query bool false "Bypass the summary cache"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/summary [get]
func (h *FinanceHandler) Summary(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.Query("refresh"))
	summary, err := h.ledger.Summary(c.Request.Context(), c.Param("id"), refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Status godoc
// @Summary Get a student's clearance standing
// @Description Evaluate compulsory fees and percentage thresholds for one student
// @Tags Finance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/status [get]
func (h *FinanceHandler) Status(c *gin.Context) {
	result, err := h.status.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Matrix godoc
// @Summary Get a student's fee matrix
// @Description Project billings and payments onto named fee columns with credit coverage
// @Tags Finance
// @Produce json
// @Param id path string true "Student ID"
// @Param columns query string false "Comma-separated column override"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/matrix [get]
func (h *FinanceHandler) Matrix(c *gin.Context) {
	var columns []string
	if raw := c.Query("columns"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				columns = append(columns, trimmed)
			}
		}
	}
	projection, err := h.matrix.Project(c.Request.Context(), c.Param("id"), columns)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projection, nil)
}

// Statement godoc
// @Summary Download a student's fee statement
// @Description Render the student's ledger as a CSV or PDF statement
// @Tags Finance
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param format query string false "Output format: csv (default) or pdf"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/statement [get]
func (h *FinanceHandler) Statement(c *gin.Context) {
	if h.statements == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "statements are disabled"))
		return
	}
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "pdf" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	body, contentType, filename, err := h.statements.Render(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}
