// 트렌드 분석 모델
//
// (component, metric) 시계열에서 파생되는 Trend/Prediction/Anomaly 정의.
// Trend는 저장하지 않고 조회 시 계산.

package model

import "time"

// MetricSample - 시계열 샘플 1건
type MetricSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// 트렌드 방향 (기울기 ±0.1 dead zone 안이면 stable)
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Trend - 파생 통계 (OLS 기울기 + 변동성)
type Trend struct {
	Component   string         `json:"component"`
	Metric      string         `json:"metric"`
	Slope       float64        `json:"slope"` // 시간당 변화량
	Volatility  float64        `json:"volatility"`
	Direction   TrendDirection `json:"direction"`
	SampleCount int            `json:"sample_count"`
	Current     float64        `json:"current"`
}

// 예측 유형
type PredictionType string

const (
	PredictionDiskFull          PredictionType = "disk_full"
	PredictionMemoryExhaustion  PredictionType = "memory_exhaustion"
	PredictionRecurringFailure  PredictionType = "recurring_failure"
)

// 신뢰도 밴드 (변동성의 역함수, 3단계 고정)
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Prediction - 임계치 도달/재발 예측
type Prediction struct {
	Type       PredictionType `json:"type"`
	Component  string         `json:"component"`
	Metric     string         `json:"metric,omitempty"`
	Current    float64        `json:"current,omitempty"`
	Threshold  float64        `json:"threshold,omitempty"`
	HoursUntil float64        `json:"hours_until"`
	Confidence Confidence     `json:"confidence"`
	Message    string         `json:"message"`
}

// Anomaly 종류
type AnomalyKind string

const (
	AnomalyOutlier AnomalyKind = "outlier" // 전체 평균에서 3σ 초과
	AnomalyJump    AnomalyKind = "jump"    // 단일 스텝 변화가 2σ 초과
)

// Anomaly - 이상치 플래그
//
// 예측과 달리 Issue로 자동 승격되지 않음 (사람 참고용).
type Anomaly struct {
	Component  string      `json:"component"`
	Metric     string      `json:"metric"`
	Kind       AnomalyKind `json:"kind"`
	Value      float64     `json:"value"`
	Mean       float64     `json:"mean"`
	StdDev     float64     `json:"std_dev"`
	ObservedAt time.Time   `json:"observed_at"`
}
