// 트렌드 분석/예측 비즈니스 로직 정의
//
// 처리 흐름:
//  1. runner가 푸시한 (component, metric) 샘플을 보존 윈도우(7일) 안에서 유지
//  2. Trend: 최소 샘플 수(24) 이상일 때 OLS 기울기 + 모표준편차 계산
//  3. 예측: 증가 추세가 임계치(disk 95%, memory 90%)에 도달하는 시점을 투영
//     - 음수/호라이즌 밖이면 폐기 (disk 30일, memory 7일 - 메모리 고갈이
//       더 빠르게 진행되는 장애라 의도적으로 비대칭)
//  4. 재발 장애 예측: component별 장애 간격의 평균/표준편차로 다음 발생 투영
//  5. 이상치: 최근 10개 중 전체 평균에서 3σ 초과 또는 단일 스텝 2σ 초과
//     - 로그/조회만, Issue로 자동 승격하지 않음 (예측만 Issue 생성 가능)

package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

const (
	trendRetention  = 7 * 24 * time.Hour
	trendMinSamples = 24
	slopeDeadZone   = 0.1

	diskFullThreshold   = 95.0
	diskHorizonHours    = 30 * 24
	memoryThreshold     = 90.0
	memoryHorizonHours  = 7 * 24
	failureHorizonHours = 30 * 24
)

// trendIssueReporter - 예측을 합성 Issue로 접수할 대상
type trendIssueReporter interface {
	Report(source, component, issueType string, severity model.Severity, description string, metrics map[string]string) (*model.Issue, bool)
}

// failureSource - recurring-failure 통계에 쓸 장애 발생 이력
type failureSource interface {
	FailureComponents() []string
	FailureTimes(component string) []time.Time
}

// TrendService 구조체 정의
type TrendService struct {
	mu      sync.Mutex
	samples map[string]map[string][]model.MetricSample // component -> metric -> samples

	issues      trendIssueReporter
	failures    failureSource
	spawnIssues bool

	now func() time.Time
}

// TrendService 객체 생성
func NewTrendService(failures failureSource, spawnIssues bool) *TrendService {
	return &TrendService{
		samples:     make(map[string]map[string][]model.MetricSample),
		failures:    failures,
		spawnIssues: spawnIssues,
		now:         time.Now,
	}
}

// SetIssueReporter - 합성 Issue 접수 대상 연결 (main에서 호출)
func (s *TrendService) SetIssueReporter(r trendIssueReporter) {
	s.issues = r
}

// AddSample - 샘플 추가 (보존 윈도우 밖 샘플은 읽기 시점에 prune)
func (s *TrendService) AddSample(component, metric string, value float64, ts time.Time) {
	if ts.IsZero() {
		ts = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.samples[component] == nil {
		s.samples[component] = make(map[string][]model.MetricSample)
	}
	s.samples[component][metric] = append(s.samples[component][metric],
		model.MetricSample{Timestamp: ts, Value: value})
}

// Trend - (component, metric)의 파생 트렌드 (샘플 부족 시 nil)
func (s *TrendService) Trend(component, metric string) *model.Trend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trendLocked(component, metric)
}

func (s *TrendService) trendLocked(component, metric string) *model.Trend {
	samples := s.pruneLocked(component, metric)
	if len(samples) < trendMinSamples {
		return nil
	}

	// OLS: x = 첫 샘플로부터 경과 시간(시간 단위), y = 값
	first := samples[0].Timestamp
	n := float64(len(samples))
	var sumX, sumY, sumXY, sumXX float64
	for _, sample := range samples {
		x := sample.Timestamp.Sub(first).Hours()
		sumX += x
		sumY += sample.Value
		sumXY += x * sample.Value
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return nil
	}
	slope := (n*sumXY - sumX*sumY) / denom

	mean := sumY / n
	var variance float64
	for _, sample := range samples {
		variance += (sample.Value - mean) * (sample.Value - mean)
	}
	volatility := math.Sqrt(variance / n)

	return &model.Trend{
		Component:   component,
		Metric:      metric,
		Slope:       slope,
		Volatility:  volatility,
		Direction:   trendDirection(slope),
		SampleCount: len(samples),
		Current:     samples[len(samples)-1].Value,
	}
}

// trendDirection - |slope| < dead zone일 때만 stable (경계값은 방향 판정에 포함)
func trendDirection(slope float64) model.TrendDirection {
	switch {
	case slope >= slopeDeadZone:
		return model.TrendIncreasing
	case slope <= -slopeDeadZone:
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}

// Predictions - 자원 고갈 예측 (disk/memory) + 재발 장애 예측
func (s *TrendService) Predictions() []model.Prediction {
	var predictions []model.Prediction

	s.mu.Lock()
	type series struct{ component, metric string }
	var all []series
	for component, metrics := range s.samples {
		for metric := range metrics {
			all = append(all, series{component, metric})
		}
	}
	s.mu.Unlock()

	for _, sr := range all {
		if p := s.exhaustionPrediction(sr.component, sr.metric); p != nil {
			predictions = append(predictions, *p)
		}
	}

	predictions = append(predictions, s.RecurringFailures()...)
	return predictions
}

// exhaustionPrediction - 단조 증가 추세의 임계치 도달 시점 투영
func (s *TrendService) exhaustionPrediction(component, metric string) *model.Prediction {
	var (
		predType  model.PredictionType
		threshold float64
		horizon   float64
	)
	switch {
	case strings.Contains(metric, "disk"):
		predType, threshold, horizon = model.PredictionDiskFull, diskFullThreshold, diskHorizonHours
	case strings.Contains(metric, "mem"):
		predType, threshold, horizon = model.PredictionMemoryExhaustion, memoryThreshold, memoryHorizonHours
	default:
		return nil
	}

	trend := s.Trend(component, metric)
	if trend == nil || trend.Direction != model.TrendIncreasing {
		return nil
	}

	hoursUntil := (threshold - trend.Current) / trend.Slope
	if hoursUntil <= 0 || hoursUntil > horizon {
		return nil
	}

	return &model.Prediction{
		Type:       predType,
		Component:  component,
		Metric:     metric,
		Current:    trend.Current,
		Threshold:  threshold,
		HoursUntil: hoursUntil,
		Confidence: confidenceByVolatility(trend.Volatility),
		Message: fmt.Sprintf("%s %s is trending toward %.0f%% (currently %.1f%%), projected to hit the threshold in %.1f hours",
			component, metric, threshold, trend.Current, hoursUntil),
	}
}

// RecurringFailures - 장애 간격 통계 기반 다음 발생 예측
func (s *TrendService) RecurringFailures() []model.Prediction {
	if s.failures == nil {
		return nil
	}

	var predictions []model.Prediction
	now := s.now()

	for _, component := range s.failures.FailureComponents() {
		times := s.failures.FailureTimes(component)
		if len(times) < 3 {
			continue // 간격 2개 미만이면 통계 불가
		}

		intervals := make([]float64, 0, len(times)-1)
		for i := 1; i < len(times); i++ {
			intervals = append(intervals, times[i].Sub(times[i-1]).Hours())
		}

		var sum float64
		for _, iv := range intervals {
			sum += iv
		}
		mean := sum / float64(len(intervals))
		if mean <= 0 {
			continue
		}

		var variance float64
		for _, iv := range intervals {
			variance += (iv - mean) * (iv - mean)
		}
		stddev := math.Sqrt(variance / float64(len(intervals)))

		next := times[len(times)-1].Add(time.Duration(mean * float64(time.Hour)))
		hoursUntil := next.Sub(now).Hours()
		if hoursUntil <= 0 || hoursUntil > failureHorizonHours {
			continue
		}

		// 신뢰도는 간격 변동계수의 역함수
		cv := stddev / mean
		confidence := model.ConfidenceLow
		if cv < 0.3 {
			confidence = model.ConfidenceHigh
		} else if cv < 0.6 {
			confidence = model.ConfidenceMedium
		}

		predictions = append(predictions, model.Prediction{
			Type:       model.PredictionRecurringFailure,
			Component:  component,
			HoursUntil: hoursUntil,
			Confidence: confidence,
			Message: fmt.Sprintf("%s fails every %.1f hours on average (%d occurrences), next failure projected in %.1f hours",
				component, mean, len(times), hoursUntil),
		})
	}

	return predictions
}

// Anomalies - 전체 시계열의 이상치 조회
func (s *TrendService) Anomalies() []model.Anomaly {
	s.mu.Lock()
	type series struct{ component, metric string }
	var all []series
	for component, metrics := range s.samples {
		for metric := range metrics {
			all = append(all, series{component, metric})
		}
	}
	s.mu.Unlock()

	var anomalies []model.Anomaly
	for _, sr := range all {
		anomalies = append(anomalies, s.detectAnomalies(sr.component, sr.metric)...)
	}
	return anomalies
}

// detectAnomalies - 최근 10개 샘플 기준 outlier/jump 탐지
func (s *TrendService) detectAnomalies(component, metric string) []model.Anomaly {
	s.mu.Lock()
	samples := s.pruneLocked(component, metric)
	samples = append([]model.MetricSample(nil), samples...)
	s.mu.Unlock()

	if len(samples) < 10 {
		return nil
	}

	var sum float64
	for _, sample := range samples {
		sum += sample.Value
	}
	mean := sum / float64(len(samples))

	var variance float64
	for _, sample := range samples {
		variance += (sample.Value - mean) * (sample.Value - mean)
	}
	stddev := math.Sqrt(variance / float64(len(samples)))
	if stddev == 0 {
		return nil
	}

	var anomalies []model.Anomaly
	start := len(samples) - 10

	for i := start; i < len(samples); i++ {
		if math.Abs(samples[i].Value-mean) > 3*stddev {
			anomalies = append(anomalies, model.Anomaly{
				Component: component, Metric: metric, Kind: model.AnomalyOutlier,
				Value: samples[i].Value, Mean: mean, StdDev: stddev,
				ObservedAt: samples[i].Timestamp,
			})
		}
		if i > 0 && math.Abs(samples[i].Value-samples[i-1].Value) > 2*stddev {
			anomalies = append(anomalies, model.Anomaly{
				Component: component, Metric: metric, Kind: model.AnomalyJump,
				Value: samples[i].Value, Mean: mean, StdDev: stddev,
				ObservedAt: samples[i].Timestamp,
			})
		}
	}
	return anomalies
}

// RunSweep - 주기 분석: 예측 로그 + (설정 시) 합성 Issue 접수, 이상치 로그
func (s *TrendService) RunSweep(ctx context.Context) {
	_ = ctx

	for _, p := range s.Predictions() {
		log.Printf("Prediction (type=%s, component=%s, hours_until=%.1f, confidence=%s)",
			p.Type, p.Component, p.HoursUntil, p.Confidence)

		if !s.spawnIssues || s.issues == nil {
			continue
		}

		issueType := ""
		switch p.Type {
		case model.PredictionDiskFull:
			issueType = model.IssueTypeDiskFullPredicted
		case model.PredictionMemoryExhaustion:
			issueType = model.IssueTypeMemoryExhaustionPredicted
		case model.PredictionRecurringFailure:
			issueType = model.IssueTypeRecurringFailure
		}

		s.issues.Report("trend", p.Component, issueType, model.SeverityWarning, p.Message, map[string]string{
			"metric":      p.Metric,
			"hours_until": fmt.Sprintf("%.1f", p.HoursUntil),
			"confidence":  string(p.Confidence),
		})
	}

	// 이상치는 사람 참고용으로 로그만
	for _, a := range s.Anomalies() {
		log.Printf("Anomaly (component=%s, metric=%s, kind=%s, value=%.2f, mean=%.2f, stddev=%.2f)",
			a.Component, a.Metric, a.Kind, a.Value, a.Mean, a.StdDev)
	}
}

// StartSweeper - 백그라운드 주기 분석 실행
func (s *TrendService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunSweep(ctx)
			}
		}
	}()
}

// pruneLocked - 보존 윈도우 밖 샘플 제거 후 반환
func (s *TrendService) pruneLocked(component, metric string) []model.MetricSample {
	samples := s.samples[component][metric]
	if len(samples) == 0 {
		return nil
	}

	cutoff := s.now().Add(-trendRetention)
	idx := 0
	for idx < len(samples) && samples[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		samples = samples[idx:]
		s.samples[component][metric] = samples
	}
	return samples
}

func confidenceByVolatility(volatility float64) model.Confidence {
	switch {
	case volatility < 5:
		return model.ConfidenceHigh
	case volatility < 15:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
