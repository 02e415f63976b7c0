package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lab-sentinel/backend/internal/model"
	"github.com/lab-sentinel/backend/internal/service"
)

// IngestHandler - 외부 감지원(Alertmanager, runner) 수신 핸들러
type IngestHandler struct {
	issues *service.IssueService
	trends *service.TrendService
}

func NewIngestHandler(issues *service.IssueService, trends *service.TrendService) *IngestHandler {
	return &IngestHandler{issues: issues, trends: trends}
}

// PostAlertWebhook godoc
// @Summary Receive Alertmanager webhook
// @Tags ingest
// @Accept json
// @Produce json
// @Param request body model.AlertWebhook true "Alertmanager webhook payload"
// @Success 200 {object} model.AlertWebhookResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/alerts/webhook [post]
func (h *IngestHandler) PostAlertWebhook(c *gin.Context) {
	var webhook model.AlertWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload: " + err.Error()})
		return
	}

	res := h.issues.ProcessWebhook(webhook)
	c.JSON(http.StatusOK, res)
}

// PostIssueReport godoc
// @Summary Report a locally detected issue
// @Tags ingest
// @Accept json
// @Produce json
// @Param request body model.ReportIssueRequest true "Issue report"
// @Success 200 {object} model.Issue
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/issues/report [post]
func (h *IngestHandler) PostIssueReport(c *gin.Context) {
	var req model.ReportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report payload: " + err.Error()})
		return
	}

	// 해소 보고는 기존 Issue만 닫음
	if req.Resolved {
		fingerprint := model.NewFingerprint(req.Source, req.Component, req.IssueType)
		issue := h.issues.Resolve(fingerprint)
		if issue == nil {
			c.JSON(http.StatusOK, gin.H{"status": "no_open_issue"})
			return
		}
		c.JSON(http.StatusOK, issue)
		return
	}

	issue, _ := h.issues.Report(req.Source, req.Component, req.IssueType,
		model.ParseSeverity(req.Severity), req.Description, req.Metrics)
	c.JSON(http.StatusOK, issue)
}

// PostMetricSample godoc
// @Summary Push a metric sample for trend analysis
// @Tags ingest
// @Accept json
// @Produce json
// @Param request body model.MetricSampleRequest true "Metric sample"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/metrics/samples [post]
func (h *IngestHandler) PostMetricSample(c *gin.Context) {
	var req model.MetricSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sample payload: " + err.Error()})
		return
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
			return
		}
		ts = parsed
	}

	h.trends.AddSample(req.Component, req.Metric, req.Value, ts)
	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}
