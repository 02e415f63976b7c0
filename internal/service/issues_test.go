package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

type fakeRecorder struct {
	mu     sync.Mutex
	issues []*model.Issue
}

func (f *fakeRecorder) RecordIssue(issue *model.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = append(f.issues, issue)
}

func firingAlert(name, instance string) model.Alert {
	return model.Alert{
		Status:      "firing",
		Labels:      map[string]string{"alertname": name, "instance": instance, "severity": "warning"},
		Annotations: map[string]string{"description": name + " on " + instance},
	}
}

func TestIngestAlertDeduplicates(t *testing.T) {
	svc := NewIssueService(nil)

	first, created := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	if !created {
		t.Fatalf("first alert should create an issue")
	}
	if first.Status != model.IssueStatusFiring {
		t.Fatalf("new issue status = %s, want firing", first.Status)
	}
	if first.IssueType != model.IssueTypeContainerStopped {
		t.Fatalf("issue type = %s, want container_stopped", first.IssueType)
	}

	second, created := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	if created {
		t.Fatalf("repeat alert must not create a second issue")
	}
	if second.Fingerprint != first.Fingerprint {
		t.Fatalf("repeat alert must map to the existing issue")
	}
	if got := len(svc.ActiveIssues()); got != 1 {
		t.Fatalf("active issues = %d, want 1", got)
	}
}

func TestRepeatAlertKeepsAcknowledgement(t *testing.T) {
	svc := NewIssueService(nil)

	issue, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	if svc.Acknowledge(issue.Fingerprint, "kim") == nil {
		t.Fatalf("acknowledge failed")
	}

	repeat, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	if repeat.Status != model.IssueStatusAcknowledged {
		t.Fatalf("repeat observation must not clear acknowledgement, status = %s", repeat.Status)
	}
	if repeat.AcknowledgedBy != "kim" {
		t.Fatalf("acknowledged_by lost: %q", repeat.AcknowledgedBy)
	}
}

func TestResolveClearsAcknowledgementForRefire(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewIssueService(rec)

	issue, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	svc.Acknowledge(issue.Fingerprint, "kim")

	resolved := svc.Resolve(issue.Fingerprint)
	if resolved == nil || resolved.Status != model.IssueStatusResolved {
		t.Fatalf("resolve failed")
	}
	if resolved.AcknowledgedAt != nil || resolved.AcknowledgedBy != "" {
		t.Fatalf("resolve must discard acknowledgement state")
	}
	if len(rec.issues) != 1 {
		t.Fatalf("resolved issue not recorded to outcome history")
	}

	// 재발화: 새 인시던트는 firing으로 시작해야 함
	refired, created := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	if !created {
		t.Fatalf("refire after resolve must create a fresh issue")
	}
	if refired.Status != model.IssueStatusFiring {
		t.Fatalf("refired issue status = %s, want firing", refired.Status)
	}
}

func TestResolveUnknownFingerprintIsNoop(t *testing.T) {
	svc := NewIssueService(nil)
	if svc.Resolve("deadbeef") != nil {
		t.Fatalf("resolving unknown fingerprint should return nil")
	}
}

func TestAcknowledgeOnlyFiring(t *testing.T) {
	svc := NewIssueService(nil)
	issue, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))

	svc.Silence(issue.Fingerprint, 10)
	if svc.Acknowledge(issue.Fingerprint, "kim") != nil {
		t.Fatalf("silenced issue must not be acknowledgeable")
	}
}

func TestSilenceExpiryRestoresFiring(t *testing.T) {
	svc := NewIssueService(nil)
	current := time.Now()
	svc.now = func() time.Time { return current }

	issue, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	svc.Silence(issue.Fingerprint, 30)

	// 윈도우 안의 재관측은 silenced 유지
	current = current.Add(10 * time.Minute)
	inside, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	if inside.Status != model.IssueStatusSilenced {
		t.Fatalf("status inside silence window = %s, want silenced", inside.Status)
	}

	// 윈도우가 지난 뒤 재관측은 firing으로 복귀
	current = current.Add(25 * time.Minute)
	after, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	if after.Status != model.IssueStatusFiring {
		t.Fatalf("status after silence window = %s, want firing", after.Status)
	}
	if after.SilencedUntil != nil {
		t.Fatalf("silenced_until should be cleared after expiry")
	}
}

func TestPrefixLookup(t *testing.T) {
	svc := NewIssueService(nil)
	issue, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))

	got := svc.Get(issue.ShortID())
	if got == nil || got.Fingerprint != issue.Fingerprint {
		t.Fatalf("short id prefix lookup failed")
	}
	if svc.Get("zzzz") != nil {
		t.Fatalf("unknown prefix should return nil")
	}
}

func TestProcessWebhookSkipsMalformed(t *testing.T) {
	svc := NewIssueService(nil)

	res := svc.ProcessWebhook(model.AlertWebhook{Alerts: []model.Alert{
		firingAlert("ContainerDown", "nginx"),
		{Status: "firing", Labels: map[string]string{"instance": "orphan"}}, // alertname 없음
		firingAlert("ServiceDown", "jellyfin"),
	}})

	if res.Created != 2 || res.Skipped != 1 {
		t.Fatalf("created=%d skipped=%d, want 2/1", res.Created, res.Skipped)
	}
	if got := len(svc.ActiveIssues()); got != 2 {
		t.Fatalf("active issues = %d, want 2", got)
	}
}

func TestCallbackFailureIsolation(t *testing.T) {
	svc := NewIssueService(nil)

	var calls []string
	svc.RegisterCallback(func(issue *model.Issue) error {
		calls = append(calls, "first")
		return fmt.Errorf("notification channel down")
	})
	svc.RegisterCallback(func(issue *model.Issue) error {
		calls = append(calls, "second")
		return nil
	})

	svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	if len(calls) != 2 {
		t.Fatalf("callback calls = %v, a failing callback must not block later ones", calls)
	}
}

func TestStatsIsReadOnly(t *testing.T) {
	svc := NewIssueService(nil)
	issue, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))
	svc.IngestAlert(firingAlert("ServiceDown", "jellyfin"))
	svc.Acknowledge(issue.Fingerprint, "kim")

	stats := svc.Stats()
	if stats.Total != 2 {
		t.Fatalf("total = %d, want 2", stats.Total)
	}
	if stats.ByStatus[model.IssueStatusAcknowledged] != 1 || stats.ByStatus[model.IssueStatusFiring] != 1 {
		t.Fatalf("unexpected status counts: %+v", stats.ByStatus)
	}

	// 조회가 상태를 바꾸면 안 됨
	if again := svc.Stats(); again.ByStatus[model.IssueStatusAcknowledged] != 1 {
		t.Fatalf("stats query must not mutate state")
	}
}

func TestQueryResultsAreDetachedCopies(t *testing.T) {
	svc := NewIssueService(nil)
	issue, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))

	// 반환된 스냅샷을 변조해도 내부 상태에 닿지 않아야 함
	issue.Status = model.IssueStatusResolved
	issue.Metrics["tampered"] = "yes"

	got := svc.Get(issue.Fingerprint)
	if got.Status != model.IssueStatusFiring {
		t.Fatalf("stored status = %s, mutating a snapshot must not change it", got.Status)
	}
	if _, ok := got.Metrics["tampered"]; ok {
		t.Fatalf("stored metrics leaked a snapshot mutation")
	}

	list := svc.ActiveIssues()
	list[0].Description = "tampered"
	if svc.Get(issue.Fingerprint).Description == "tampered" {
		t.Fatalf("ActiveIssues must return copies")
	}
}

func TestSetClassificationOnActiveOnly(t *testing.T) {
	svc := NewIssueService(nil)
	issue, _ := svc.IngestAlert(firingAlert("ContainerDown", "nginx"))

	diag := &model.Diagnosis{RootCause: "container oom", Reasoning: "exit code 137"}
	svc.SetClassification(issue.Fingerprint, model.RiskLow, "docker restart nginx", diag)

	got := svc.Get(issue.Fingerprint)
	if got.RiskLevel != model.RiskLow || got.SuggestedFix != "docker restart nginx" {
		t.Fatalf("classification not applied: risk=%s fix=%q", got.RiskLevel, got.SuggestedFix)
	}
	if got.Diagnosis == nil || got.Diagnosis.RootCause != "container oom" {
		t.Fatalf("diagnosis not applied: %+v", got.Diagnosis)
	}

	// 이미 해결된 Issue에는 no-op
	svc.Resolve(issue.Fingerprint)
	svc.SetClassification(issue.Fingerprint, model.RiskHigh, "reboot", nil)
	if svc.Get(issue.Fingerprint) != nil {
		t.Fatalf("resolved issue must not reappear")
	}
}

func TestConcurrentIngestAndSerialization(t *testing.T) {
	svc := NewIssueService(nil)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			alert := firingAlert("ContainerDown", "nginx")
			alert.Annotations["description"] = fmt.Sprintf("restart count %d", i)
			alert.Labels["restarts"] = fmt.Sprintf("%d", i)
			svc.IngestAlert(alert)
		}
	}()

	// 핸들러의 JSON 직렬화 경로와 동일하게 스냅샷을 읽는다
	for i := 0; i < 200; i++ {
		if _, err := json.Marshal(svc.ActiveIssues()); err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
	}
	close(done)
	wg.Wait()
}
