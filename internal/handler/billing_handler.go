package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-finance-api/internal/models"
	"github.com/noah-isme/sma-finance-api/internal/repository"
	"github.com/noah-isme/sma-finance-api/internal/service"
	appErrors "github.com/noah-isme/sma-finance-api/pkg/errors"
	"github.com/noah-isme/sma-finance-api/pkg/response"
)

// BillingHandler exposes billing and payment record endpoints. Mutations
// invalidate the student's cached summary so the next read reconciles fresh.
type BillingHandler struct {
	billings *repository.BillingRepository
	payments *repository.PaymentRepository
	ledger   *service.LedgerService
}

// NewBillingHandler creates a new handler.
func NewBillingHandler(billings *repository.BillingRepository, payments *repository.PaymentRepository, ledger *service.LedgerService) *BillingHandler {
	return &BillingHandler{billings: billings, payments: payments, ledger: ledger}
}

// ListBillings godoc
// @Summary List a student's billings
// @Tags Billing
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/billings [get]
func (h *BillingHandler) ListBillings(c *gin.Context) {
	billings, err := h.billings.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list billings"))
		return
	}
	response.JSON(c, http.StatusOK, billings, nil)
}

// CreateBilling godoc
// @Summary Record a billing
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.Billing true "Billing payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/billings [post]
func (h *BillingHandler) CreateBilling(c *gin.Context) {
	var billing models.Billing
	if err := c.ShouldBindJSON(&billing); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid billing payload"))
		return
	}
	billing.StudentID = c.Param("id")
	if billing.Amount == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "amount must be non-zero"))
		return
	}
	if err := h.billings.Create(c.Request.Context(), &billing); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create billing"))
		return
	}
	h.ledger.Invalidate(c.Request.Context(), billing.StudentID)
	response.Created(c, billing)
}

// VoidBilling godoc
// @Summary Void a billing
// @Description Exclude a billing from reconciliation without deleting the row
// @Tags Billing
// @Produce json
// @Param id path string true "Student ID"
// @Param billingId path string true "Billing ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/billings/{billingId}/void [post]
func (h *BillingHandler) VoidBilling(c *gin.Context) {
	if err := h.billings.Void(c.Request.Context(), c.Param("billingId")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "billing not found"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to void billing"))
		return
	}
	h.ledger.Invalidate(c.Request.Context(), c.Param("id"))
	response.NoContent(c)
}

// ListPayments godoc
// @Summary List a student's payments
// @Tags Billing
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/payments [get]
func (h *BillingHandler) ListPayments(c *gin.Context) {
	payments, err := h.payments.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments"))
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// CreatePayment godoc
// @Summary Record a payment
// @Description Record a payment with optional per-fee allocations
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.Payment true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/payments [post]
func (h *BillingHandler) CreatePayment(c *gin.Context) {
	var payment models.Payment
	if err := c.ShouldBindJSON(&payment); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	payment.StudentID = c.Param("id")
	if payment.Amount <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "amount must be positive"))
		return
	}
	if err := h.payments.Create(c.Request.Context(), &payment); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment"))
		return
	}
	h.ledger.Invalidate(c.Request.Context(), payment.StudentID)
	response.Created(c, payment)
}
