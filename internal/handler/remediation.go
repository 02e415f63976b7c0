package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lab-sentinel/backend/internal/model"
	"github.com/lab-sentinel/backend/internal/service"
)

// RemediationHandler - 조치 이력/승인/결과 리포트 핸들러
type RemediationHandler struct {
	engine    *service.RemediationEngine
	approvals *service.ApprovalService
	outcomes  *service.OutcomeService
}

func NewRemediationHandler(engine *service.RemediationEngine, approvals *service.ApprovalService, outcomes *service.OutcomeService) *RemediationHandler {
	return &RemediationHandler{engine: engine, approvals: approvals, outcomes: outcomes}
}

// GetActions godoc
// @Summary List recent remediation actions
// @Tags remediation
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max entries (default 50)"
// @Success 200 {array} model.RemediationAction
// @Router /api/v1/actions [get]
func (h *RemediationHandler) GetActions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	c.JSON(http.StatusOK, h.engine.RecentActions(limit))
}

// GetApprovals godoc
// @Summary List pending approval requests
// @Tags remediation
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ApprovalRequest
// @Router /api/v1/approvals [get]
func (h *RemediationHandler) GetApprovals(c *gin.Context) {
	c.JSON(http.StatusOK, h.approvals.Pending())
}

// ResolveApproval godoc
// @Summary Approve or reject a pending remediation
// @Tags remediation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Approval id or short id prefix"
// @Param request body model.ResolveApprovalRequest true "Approval decision"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 410 {object} model.ErrorResponse
// @Router /api/v1/approvals/{ref}/resolve [post]
func (h *RemediationHandler) ResolveApproval(c *gin.Context) {
	var req model.ResolveApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid approval payload: " + err.Error()})
		return
	}

	actor := req.Actor
	if actor == "" {
		actor = loginIDFromContext(c)
	}

	err := h.approvals.Resolve(c.Param("ref"), req.Approved, actor)
	switch {
	case errors.Is(err, service.ErrApprovalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "approval not found"})
	case errors.Is(err, service.ErrApprovalExpired):
		c.JSON(http.StatusGone, gin.H{"error": "approval has expired"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		status := "rejected"
		if req.Approved {
			status = "approved"
		}
		c.JSON(http.StatusOK, model.StatusResponse{Status: status})
	}
}

// GetOutcomes godoc
// @Summary Summarise remediation outcomes over a window
// @Tags remediation
// @Produce json
// @Security BearerAuth
// @Param hours query int false "Window in hours (default 24)"
// @Success 200 {object} model.OutcomeReportResponse
// @Router /api/v1/outcomes [get]
func (h *RemediationHandler) GetOutcomes(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	c.JSON(http.StatusOK, h.outcomes.Report(time.Duration(hours)*time.Hour))
}
