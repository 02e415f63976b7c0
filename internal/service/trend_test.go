package service

import (
	"sync"
	"testing"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

type fakeFailureSource struct {
	mu    sync.Mutex
	times map[string][]time.Time
}

func (f *fakeFailureSource) FailureComponents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for c := range f.times {
		out = append(out, c)
	}
	return out
}

func (f *fakeFailureSource) FailureTimes(component string) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.times[component]
}

// addLinearSamples - value = start + slope*i 인 시간당 샘플 주입
func addLinearSamples(svc *TrendService, component, metric string, base time.Time, count int, start, slope float64) {
	for i := 0; i < count; i++ {
		svc.AddSample(component, metric, start+slope*float64(i), base.Add(time.Duration(i)*time.Hour))
	}
}

func TestTrendRequiresMinimumSamples(t *testing.T) {
	svc := NewTrendService(nil, false)
	base := time.Now().Add(-30 * time.Hour)

	addLinearSamples(svc, "pve1", "disk_used_percent", base, 23, 50, 1)
	if svc.Trend("pve1", "disk_used_percent") != nil {
		t.Fatalf("23 samples must not be enough for a trend")
	}

	svc.AddSample("pve1", "disk_used_percent", 73, base.Add(23*time.Hour))
	trend := svc.Trend("pve1", "disk_used_percent")
	if trend == nil {
		t.Fatalf("24 samples should produce a trend")
	}
	if trend.Direction != model.TrendIncreasing {
		t.Fatalf("direction = %s, want increasing", trend.Direction)
	}
	if trend.Slope < 0.9 || trend.Slope > 1.1 {
		t.Fatalf("slope = %.3f, want ~1.0 per hour", trend.Slope)
	}
}

func TestTrendDeadZoneIsStable(t *testing.T) {
	svc := NewTrendService(nil, false)
	base := time.Now().Add(-30 * time.Hour)

	// 시간당 0.05 변화: dead zone(±0.1) 안이라 stable
	addLinearSamples(svc, "pve1", "cpu_percent", base, 30, 40, 0.05)
	trend := svc.Trend("pve1", "cpu_percent")
	if trend == nil || trend.Direction != model.TrendStable {
		t.Fatalf("trend inside dead zone should be stable, got %+v", trend)
	}
}

func TestTrendDirectionBoundary(t *testing.T) {
	tests := []struct {
		name  string
		slope float64
		want  model.TrendDirection
	}{
		{name: "exactly-plus-dead-zone", slope: 0.1, want: model.TrendIncreasing},
		{name: "exactly-minus-dead-zone", slope: -0.1, want: model.TrendDecreasing},
		{name: "just-inside", slope: 0.0999, want: model.TrendStable},
		{name: "flat", slope: 0, want: model.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trendDirection(tt.slope); got != tt.want {
				t.Fatalf("trendDirection(%v) = %s, want %s", tt.slope, got, tt.want)
			}
		})
	}
}

func TestDiskFullPrediction(t *testing.T) {
	svc := NewTrendService(nil, false)
	base := time.Now().Add(-48 * time.Hour)

	// 48시간 동안 60% → 84%, 시간당 +0.5 → 95%까지 약 22시간
	addLinearSamples(svc, "pve1", "disk_used_percent", base, 48, 60, 0.5)

	predictions := svc.Predictions()
	if len(predictions) != 1 {
		t.Fatalf("predictions = %d, want 1", len(predictions))
	}

	p := predictions[0]
	if p.Type != model.PredictionDiskFull {
		t.Fatalf("type = %s, want disk_full", p.Type)
	}
	if p.HoursUntil <= 0 || p.HoursUntil > 30 {
		t.Fatalf("hours_until = %.1f, want roughly 22", p.HoursUntil)
	}
	if p.Confidence != model.ConfidenceHigh && p.Confidence != model.ConfidenceMedium {
		t.Fatalf("steady series should not be low confidence, got %s", p.Confidence)
	}
}

func TestDecreasingTrendYieldsNoPrediction(t *testing.T) {
	svc := NewTrendService(nil, false)
	base := time.Now().Add(-48 * time.Hour)

	addLinearSamples(svc, "pve1", "disk_used_percent", base, 48, 80, -0.5)
	if got := svc.Predictions(); len(got) != 0 {
		t.Fatalf("decreasing usage must not predict exhaustion, got %+v", got)
	}
}

func TestSlowGrowthOutsideHorizonIsDiscarded(t *testing.T) {
	svc := NewTrendService(nil, false)
	base := time.Now().Add(-48 * time.Hour)

	// 시간당 +0.11 (dead zone은 넘지만): 50% → 95%까지 400시간 이상, memory 호라이즌(168h) 밖
	addLinearSamples(svc, "app1", "mem_used_percent", base, 48, 50, 0.11)
	if got := svc.Predictions(); len(got) != 0 {
		t.Fatalf("forecast outside the memory horizon must be discarded, got %+v", got)
	}
}

func TestMemoryHorizonShorterThanDisk(t *testing.T) {
	svc := NewTrendService(nil, false)
	base := time.Now().Add(-48 * time.Hour)

	// 시간당 +0.2: 약 200시간 뒤 임계 도달 - disk(720h)는 수용, memory(168h)는 폐기
	addLinearSamples(svc, "pve1", "disk_used_percent", base, 48, 45, 0.2)
	addLinearSamples(svc, "app1", "mem_used_percent", base, 48, 45, 0.2)

	predictions := svc.Predictions()
	if len(predictions) != 1 {
		t.Fatalf("predictions = %d, want only the disk forecast", len(predictions))
	}
	if predictions[0].Type != model.PredictionDiskFull {
		t.Fatalf("surviving prediction = %s, want disk_full", predictions[0].Type)
	}
}

func TestRecurringFailurePrediction(t *testing.T) {
	last := time.Now().Add(-2 * time.Hour)
	failures := &fakeFailureSource{times: map[string][]time.Time{
		"jellyfin": {
			last.Add(-16 * time.Hour),
			last.Add(-8 * time.Hour),
			last,
		},
	}}
	svc := NewTrendService(failures, false)

	predictions := svc.RecurringFailures()
	if len(predictions) != 1 {
		t.Fatalf("predictions = %d, want 1", len(predictions))
	}

	p := predictions[0]
	if p.Type != model.PredictionRecurringFailure {
		t.Fatalf("type = %s, want recurring_failure", p.Type)
	}
	// 간격 평균 8h, 마지막 발생 2시간 전 → 약 6시간 뒤
	if p.HoursUntil < 5 || p.HoursUntil > 7 {
		t.Fatalf("hours_until = %.1f, want ~6", p.HoursUntil)
	}
	if p.Confidence != model.ConfidenceHigh {
		t.Fatalf("perfectly regular interval should be high confidence, got %s", p.Confidence)
	}
}

func TestRecurringFailureNeedsTwoIntervals(t *testing.T) {
	failures := &fakeFailureSource{times: map[string][]time.Time{
		"jellyfin": {time.Now().Add(-8 * time.Hour), time.Now().Add(-1 * time.Hour)},
	}}
	svc := NewTrendService(failures, false)

	if got := svc.RecurringFailures(); len(got) != 0 {
		t.Fatalf("two occurrences (one interval) must not predict, got %+v", got)
	}
}

func TestAnomalyOutlierAndJump(t *testing.T) {
	svc := NewTrendService(nil, false)
	base := time.Now().Add(-20 * time.Hour)

	// 평탄한 시계열 + 마지막에 큰 스파이크
	for i := 0; i < 19; i++ {
		svc.AddSample("pve1", "cpu_percent", 50+float64(i%3), base.Add(time.Duration(i)*time.Hour))
	}
	svc.AddSample("pve1", "cpu_percent", 95, base.Add(19*time.Hour))

	anomalies := svc.Anomalies()
	if len(anomalies) == 0 {
		t.Fatalf("spike should be flagged")
	}

	kinds := map[model.AnomalyKind]bool{}
	for _, a := range anomalies {
		kinds[a.Kind] = true
		if a.Value != 95 {
			t.Fatalf("flagged value = %.1f, want the spike", a.Value)
		}
	}
	if !kinds[model.AnomalyOutlier] || !kinds[model.AnomalyJump] {
		t.Fatalf("spike should flag both outlier and jump, got %v", kinds)
	}
}

func TestQuietSeriesHasNoAnomalies(t *testing.T) {
	svc := NewTrendService(nil, false)
	base := time.Now().Add(-20 * time.Hour)

	for i := 0; i < 20; i++ {
		svc.AddSample("pve1", "cpu_percent", 50, base.Add(time.Duration(i)*time.Hour))
	}
	if got := svc.Anomalies(); len(got) != 0 {
		t.Fatalf("quiet series flagged: %+v", got)
	}
}

func TestSweepSpawnsSyntheticIssue(t *testing.T) {
	issues := NewIssueService(nil)
	svc := NewTrendService(nil, true)
	svc.SetIssueReporter(issues)

	base := time.Now().Add(-48 * time.Hour)
	addLinearSamples(svc, "pve1", "disk_used_percent", base, 48, 60, 0.5)

	svc.RunSweep(nil)

	active := issues.ActiveIssues()
	if len(active) != 1 {
		t.Fatalf("active issues = %d, want 1 synthetic issue", len(active))
	}
	if active[0].IssueType != model.IssueTypeDiskFullPredicted || active[0].Source != "trend" {
		t.Fatalf("synthetic issue = %s/%s", active[0].Source, active[0].IssueType)
	}

	// 같은 예측의 반복 스윕은 중복 Issue를 만들지 않음 (dedup 경유)
	svc.RunSweep(nil)
	if got := len(issues.ActiveIssues()); got != 1 {
		t.Fatalf("repeat sweep created duplicates: %d", got)
	}
}

func TestRetentionPrunesOldSamples(t *testing.T) {
	svc := NewTrendService(nil, false)
	current := time.Now()
	svc.now = func() time.Time { return current }

	old := current.Add(-8 * 24 * time.Hour)
	addLinearSamples(svc, "pve1", "disk_used_percent", old, 30, 50, 1)

	if svc.Trend("pve1", "disk_used_percent") != nil {
		t.Fatalf("samples past the 7d retention window must be pruned")
	}
}
