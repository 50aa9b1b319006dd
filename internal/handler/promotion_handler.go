package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-finance-api/internal/service"
	appErrors "github.com/noah-isme/sma-finance-api/pkg/errors"
	"github.com/noah-isme/sma-finance-api/pkg/response"
)

// PromotionHandler exposes the promotion state machine.
type PromotionHandler struct {
	service *service.PromotionService
}

// NewPromotionHandler creates a new handler.
func NewPromotionHandler(svc *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{service: svc}
}

// Promote godoc
// @Summary Promote a student to the next term
// @Description Snapshot the outstanding balance, move the term and issue new-term billings
// @Tags Promotions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.PromoteRequest true "Promote payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/promote [post]
func (h *PromotionHandler) Promote(c *gin.Context) {
	var req service.PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid promote payload"))
		return
	}
	result, err := h.service.Promote(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reverse godoc
// @Summary Reverse a student's latest promotion
// @Description Undo the most recent promotion, restoring term and balances
// @Tags Promotions
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/promote/reverse [post]
func (h *PromotionHandler) Reverse(c *gin.Context) {
	result, err := h.service.Reverse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkReverse godoc
// @Summary Reverse latest promotions for many students
// @Description Apply reversal independently per student; no-ops and failures never block the rest
// @Tags Promotions
// @Accept json
// @Produce json
// @Param payload body service.BulkReverseRequest true "Bulk reverse payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /promotions/reverse [post]
func (h *PromotionHandler) BulkReverse(c *gin.Context) {
	var req service.BulkReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk reverse payload"))
		return
	}
	results, err := h.service.BulkReverse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Graduate godoc
// @Summary Graduate a student at a terminal term
// @Description Close out an active student whose term sits at the end of the programme ladder
// @Tags Promotions
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/graduate [post]
func (h *PromotionHandler) Graduate(c *gin.Context) {
	result, err := h.service.Graduate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
