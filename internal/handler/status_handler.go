package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-finance-api/internal/service"
	appErrors "github.com/noah-isme/sma-finance-api/pkg/errors"
	"github.com/noah-isme/sma-finance-api/pkg/response"
)

// StatusHandler exposes the write side of clearance standing: manual
// overrides and bulk recategorisation.
type StatusHandler struct {
	service *service.StatusService
}

// NewStatusHandler creates a new handler.
func NewStatusHandler(svc *service.StatusService) *StatusHandler {
	return &StatusHandler{service: svc}
}

func actorFromContext(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.Email
	}
	return "system"
}

// Override godoc
// @Summary Pin a manual account status
// @Description Set an account status that wins over evaluation until cleared
// @Tags Finance
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.OverrideStatusRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/status/override [post]
func (h *StatusHandler) Override(c *gin.Context) {
	var req service.OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}
	result, err := h.service.Override(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClearOverride godoc
// @Summary Clear a manual account status
// @Description Remove the pinned status so evaluation resumes
// @Tags Finance
// @Produce json
// @Param id path string true "Student ID"
// @Param reason query string false "Reason recorded in clearance history"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/status/override [delete]
func (h *StatusHandler) ClearOverride(c *gin.Context) {
	result, err := h.service.ClearOverride(c.Request.Context(), c.Param("id"), c.Query("reason"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RecordRequirement godoc
// @Summary Record a physical requirement
// @Description Upsert the brought/required counts for one in-kind compulsory item and return the re-evaluated standing
// @Tags Finance
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.RequirementRequest true "Requirement payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/requirements [put]
func (h *StatusHandler) RecordRequirement(c *gin.Context) {
	var req service.RequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid requirement payload"))
		return
	}
	result, err := h.service.RecordRequirement(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Recategorize godoc
// @Summary Bulk recategorise account statuses
// @Description Queue a recomputation that replaces manual overrides with fresh statuses
// @Tags Finance
// @Accept json
// @Produce json
// @Param payload body service.RecategorizeRequest true "Recategorize payload; empty student_ids targets every active student"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/recategorize [post]
func (h *StatusHandler) Recategorize(c *gin.Context) {
	var req service.RecategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid recategorize payload"))
		return
	}
	queued, err := h.service.Recategorize(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": queued}, nil)
}
