package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lab-sentinel/backend/internal/model"
	"github.com/lab-sentinel/backend/internal/service"
)

// IssueHandler - 운영자용 Issue 조회/조작 핸들러
type IssueHandler struct {
	issues *service.IssueService
}

func NewIssueHandler(issues *service.IssueService) *IssueHandler {
	return &IssueHandler{issues: issues}
}

// GetIssues godoc
// @Summary List active issues
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Issue
// @Router /api/v1/issues [get]
func (h *IssueHandler) GetIssues(c *gin.Context) {
	c.JSON(http.StatusOK, h.issues.ActiveIssues())
}

// GetIssueStats godoc
// @Summary Active issue counts by status and severity
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.IssueStatsResponse
// @Router /api/v1/issues/stats [get]
func (h *IssueHandler) GetIssueStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.issues.Stats())
}

// GetIssue godoc
// @Summary Get one issue by fingerprint or short id prefix
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Fingerprint or short id prefix"
// @Success 200 {object} model.Issue
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/issues/{ref} [get]
func (h *IssueHandler) GetIssue(c *gin.Context) {
	issue := h.issues.Get(c.Param("ref"))
	if issue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
		return
	}
	c.JSON(http.StatusOK, issue)
}

// AcknowledgeIssue godoc
// @Summary Acknowledge a firing issue
// @Tags issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Fingerprint or short id prefix"
// @Param request body model.AcknowledgeRequest false "Acknowledging operator"
// @Success 200 {object} model.Issue
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/issues/{ref}/ack [post]
func (h *IssueHandler) AcknowledgeIssue(c *gin.Context) {
	var req model.AcknowledgeRequest
	_ = c.ShouldBindJSON(&req) // actor 생략 허용

	actor := req.Actor
	if actor == "" {
		actor = loginIDFromContext(c)
	}

	issue := h.issues.Acknowledge(c.Param("ref"), actor)
	if issue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no firing issue matches the reference"})
		return
	}
	c.JSON(http.StatusOK, issue)
}

// SilenceIssue godoc
// @Summary Silence an issue for a number of minutes
// @Tags issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Fingerprint or short id prefix"
// @Param request body model.SilenceRequest true "Silence duration"
// @Success 200 {object} model.Issue
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/issues/{ref}/silence [post]
func (h *IssueHandler) SilenceIssue(c *gin.Context) {
	var req model.SilenceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Minutes <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "minutes must be a positive integer"})
		return
	}

	issue := h.issues.Silence(c.Param("ref"), req.Minutes)
	if issue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
		return
	}
	c.JSON(http.StatusOK, issue)
}
