package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lab-sentinel/backend/internal/model"
	"github.com/lab-sentinel/backend/internal/service"
)

// TrendHandler - 트렌드/예측/이상치 조회 핸들러
type TrendHandler struct {
	trends *service.TrendService
}

func NewTrendHandler(trends *service.TrendService) *TrendHandler {
	return &TrendHandler{trends: trends}
}

// GetTrend godoc
// @Summary Derived trend for one component metric
// @Tags trends
// @Produce json
// @Security BearerAuth
// @Param component path string true "Component name"
// @Param metric path string true "Metric name"
// @Success 200 {object} model.Trend
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/trends/{component}/{metric} [get]
func (h *TrendHandler) GetTrend(c *gin.Context) {
	trend := h.trends.Trend(c.Param("component"), c.Param("metric"))
	if trend == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not enough samples for a trend"})
		return
	}
	c.JSON(http.StatusOK, trend)
}

// GetPredictions godoc
// @Summary Resource exhaustion and recurring failure predictions
// @Tags trends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Prediction
// @Router /api/v1/predictions [get]
func (h *TrendHandler) GetPredictions(c *gin.Context) {
	predictions := h.trends.Predictions()
	if predictions == nil {
		predictions = []model.Prediction{}
	}
	c.JSON(http.StatusOK, predictions)
}

// GetAnomalies godoc
// @Summary Statistical anomalies in recent metric samples
// @Tags trends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Anomaly
// @Router /api/v1/anomalies [get]
func (h *TrendHandler) GetAnomalies(c *gin.Context) {
	anomalies := h.trends.Anomalies()
	if anomalies == nil {
		anomalies = []model.Anomaly{}
	}
	c.JSON(http.StatusOK, anomalies)
}
