package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	err   error
	done  chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{done: make(chan struct{}, 16)}
}

func (f *fakeRunner) record(op, target string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, op+":"+target)
	f.mu.Unlock()
	f.done <- struct{}{}
	if f.err != nil {
		return "", f.err
	}
	return "ok", nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) RestartService(ctx context.Context, target string) (string, error) {
	return f.record("restart_service", target)
}
func (f *fakeRunner) RestartContainer(ctx context.Context, target string) (string, error) {
	return f.record("restart_container", target)
}
func (f *fakeRunner) CleanupDisk(ctx context.Context, target string) (string, error) {
	return f.record("cleanup_disk", target)
}
func (f *fakeRunner) RotateLogs(ctx context.Context, target string) (string, error) {
	return f.record("rotate_logs", target)
}
func (f *fakeRunner) ScaleResource(ctx context.Context, target string) (string, error) {
	return f.record("scale_resource", target)
}
func (f *fakeRunner) RunCustom(ctx context.Context, target, command string) (string, error) {
	return f.record("custom", target)
}

// waitCall - 비동기 실행 완료 대기
func (f *fakeRunner) waitCall(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner was not invoked in time")
	}
}

type fakeResolver struct {
	mu         sync.Mutex
	resolved   []string
	classified []string
}

func (f *fakeResolver) Resolve(fingerprint string) *model.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, fingerprint)
	return &model.Issue{Fingerprint: fingerprint, Status: model.IssueStatusResolved}
}

func (f *fakeResolver) SetClassification(fingerprint string, risk model.RiskLevel, fix string, diag *model.Diagnosis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classified = append(f.classified, fingerprint)
}

type fakeApprovals struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeApprovals) Request(issue *model.Issue) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, issue.Fingerprint)
	return issue.Fingerprint, nil
}

func (f *fakeApprovals) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func lowRiskIssue(component string) *model.Issue {
	issue := testIssue(model.IssueTypeContainerStopped)
	issue.Component = component
	issue.Fingerprint = model.NewFingerprint("test", component, issue.IssueType)
	issue.RiskLevel = model.RiskLow
	return issue
}

func newTestEngine(runner *fakeRunner, maxPerHour int) (*RemediationEngine, *fakeResolver) {
	engine := NewRemediationEngine(nil, runner, nil, nil, nil, false, maxPerHour)
	resolver := &fakeResolver{}
	engine.SetIssueResolver(resolver)
	return engine, resolver
}

func TestLowRiskAutoExecutesAndResolves(t *testing.T) {
	runner := newFakeRunner()
	engine, resolver := newTestEngine(runner, 10)

	issue := lowRiskIssue("nginx")
	decision := engine.Process(context.Background(), issue, false)
	if decision.Outcome != DecisionAutoExecute {
		t.Fatalf("decision = %s, want auto_execute", decision.Outcome)
	}

	runner.waitCall(t)
	waitFor(t, func() bool {
		resolver.mu.Lock()
		defer resolver.mu.Unlock()
		return len(resolver.resolved) == 1
	})

	actions := engine.RecentActions(10)
	if len(actions) != 1 || actions[0].Status != model.ActionStatusSuccess {
		t.Fatalf("expected one successful action, got %+v", actions)
	}
	if actions[0].Target != "container:nginx" {
		t.Fatalf("target = %q, want container:nginx", actions[0].Target)
	}
}

func TestNonLowRiskNeedsApproval(t *testing.T) {
	runner := newFakeRunner()
	engine, _ := newTestEngine(runner, 10)
	approvals := &fakeApprovals{}
	engine.SetApprovals(approvals)

	issue := testIssue(model.IssueTypeServiceDown)
	issue.RiskLevel = model.RiskMedium

	decision := engine.Process(context.Background(), issue, false)
	if decision.Outcome != DecisionNeedsApproval {
		t.Fatalf("decision = %s, want needs_approval", decision.Outcome)
	}
	if approvals.count() != 1 {
		t.Fatalf("approval requests = %d, want 1", approvals.count())
	}
	if runner.callCount() != 0 {
		t.Fatalf("runner must not be invoked before approval")
	}
}

func TestGlobalApprovalSwitchGatesLowRisk(t *testing.T) {
	runner := newFakeRunner()
	engine := NewRemediationEngine(nil, runner, nil, nil, nil, true, 10)
	approvals := &fakeApprovals{}
	engine.SetApprovals(approvals)

	decision := engine.Process(context.Background(), lowRiskIssue("nginx"), false)
	if decision.Outcome != DecisionNeedsApproval {
		t.Fatalf("decision = %s, want needs_approval when global switch is on", decision.Outcome)
	}
}

func TestResumeBypassesApprovalGateOnly(t *testing.T) {
	runner := newFakeRunner()
	engine, _ := newTestEngine(runner, 10)

	issue := testIssue(model.IssueTypeServiceDown)
	issue.RiskLevel = model.RiskHigh

	decision := engine.Resume(context.Background(), issue)
	if decision.Outcome != DecisionAutoExecute {
		t.Fatalf("resumed decision = %s, want auto_execute", decision.Outcome)
	}
	runner.waitCall(t)
}

func TestCooldownSkipsUntilElapsed(t *testing.T) {
	runner := newFakeRunner()
	engine, _ := newTestEngine(runner, 10)

	current := time.Now()
	engine.now = func() time.Time { return current }

	engine.Process(context.Background(), lowRiskIssue("nginx"), false)
	runner.waitCall(t)

	// 쿨다운 안의 재시도는 스킵
	decision := engine.Process(context.Background(), lowRiskIssue("nginx"), false)
	if decision.Outcome != DecisionSkipped || decision.Reason != SkipReasonCooldown {
		t.Fatalf("decision = %s/%s, want skipped/cooldown", decision.Outcome, decision.Reason)
	}

	// 다른 target은 영향 없음
	other := engine.Evaluate(lowRiskIssue("jellyfin"), false)
	if other.Outcome != DecisionAutoExecute {
		t.Fatalf("different target decision = %s, want auto_execute", other.Outcome)
	}

	// container_restart 쿨다운(10분)이 지나면 다시 실행 가능
	current = current.Add(11 * time.Minute)
	after := engine.Evaluate(lowRiskIssue("nginx"), false)
	if after.Outcome != DecisionAutoExecute {
		t.Fatalf("post-cooldown decision = %s, want auto_execute", after.Outcome)
	}
}

func TestPendingActionBlocksSecondExecution(t *testing.T) {
	runner := newFakeRunner()
	runner.done = make(chan struct{}) // unbuffered: 실행이 블록된 상태 유지
	engine, _ := newTestEngine(runner, 10)

	engine.Process(context.Background(), lowRiskIssue("nginx"), false)

	// 첫 실행이 완료되기 전의 두 번째 평가는 PENDING 기록에 걸림
	decision := engine.Evaluate(lowRiskIssue("nginx"), false)
	if decision.Outcome != DecisionSkipped || decision.Reason != SkipReasonCooldown {
		t.Fatalf("decision = %s/%s, in-flight action must block a second run", decision.Outcome, decision.Reason)
	}
	<-runner.done
}

func TestRateLimitCountsTrailingHour(t *testing.T) {
	runner := newFakeRunner()
	engine, _ := newTestEngine(runner, 2)

	current := time.Now()
	engine.now = func() time.Time { return current }

	engine.Process(context.Background(), lowRiskIssue("svc-a"), false)
	runner.waitCall(t)
	engine.Process(context.Background(), lowRiskIssue("svc-b"), false)
	runner.waitCall(t)

	decision := engine.Process(context.Background(), lowRiskIssue("svc-c"), false)
	if decision.Outcome != DecisionSkipped || decision.Reason != SkipReasonRateLimit {
		t.Fatalf("decision = %s/%s, want skipped/rate_limit", decision.Outcome, decision.Reason)
	}

	// 60분 경과 후 윈도우에서 빠져나가면 다시 허용
	current = current.Add(61 * time.Minute)
	after := engine.Evaluate(lowRiskIssue("svc-c"), false)
	if after.Outcome != DecisionAutoExecute {
		t.Fatalf("post-window decision = %s, want auto_execute", after.Outcome)
	}
}

func TestSkippedActionsDoNotConsumeRateLimit(t *testing.T) {
	runner := newFakeRunner()
	engine, _ := newTestEngine(runner, 2)

	engine.Process(context.Background(), lowRiskIssue("nginx"), false)
	runner.waitCall(t)

	// 같은 target 재시도 → 쿨다운 스킵이 여러 번 기록됨
	for i := 0; i < 5; i++ {
		engine.Process(context.Background(), lowRiskIssue("nginx"), false)
	}

	// 스킵 기록은 레이트리밋을 소모하지 않음
	decision := engine.Evaluate(lowRiskIssue("jellyfin"), false)
	if decision.Outcome != DecisionAutoExecute {
		t.Fatalf("decision = %s, skip records must not count toward the rate limit", decision.Outcome)
	}
}

func TestFailedActionIsTerminal(t *testing.T) {
	runner := newFakeRunner()
	runner.err = fmt.Errorf("ssh: connection refused")
	engine, resolver := newTestEngine(runner, 10)

	issue := lowRiskIssue("nginx")
	engine.Process(context.Background(), issue, false)
	runner.waitCall(t)

	waitFor(t, func() bool {
		actions := engine.RecentActions(1)
		return len(actions) == 1 && actions[0].Status == model.ActionStatusFailed
	})

	actions := engine.RecentActions(1)
	if actions[0].Error == "" {
		t.Fatalf("failed action must carry the error")
	}
	if len(resolver.resolved) != 0 {
		t.Fatalf("failed action must not resolve the issue")
	}
	if runner.callCount() != 1 {
		t.Fatalf("no automatic retry: calls = %d", runner.callCount())
	}
}

func TestNoActionPlanSkips(t *testing.T) {
	runner := newFakeRunner()
	engine, _ := newTestEngine(runner, 10)

	issue := testIssue(model.IssueTypeHostDown)
	issue.RiskLevel = model.RiskLow

	decision := engine.Process(context.Background(), issue, false)
	if decision.Outcome != DecisionSkipped || decision.Reason != SkipReasonNoAction {
		t.Fatalf("decision = %s/%s, want skipped/no_action", decision.Outcome, decision.Reason)
	}
	if runner.callCount() != 0 {
		t.Fatalf("runner must not be invoked without a plan")
	}
}

func TestRecentActionsReturnsDetachedCopies(t *testing.T) {
	runner := newFakeRunner()
	engine, _ := newTestEngine(runner, 10)

	engine.Process(context.Background(), lowRiskIssue("nginx"), false)
	runner.waitCall(t)
	waitFor(t, func() bool {
		actions := engine.RecentActions(1)
		return len(actions) == 1 && actions[0].Status == model.ActionStatusSuccess
	})

	got := engine.RecentActions(1)
	got[0].Status = model.ActionStatusFailed
	got[0].Result = "tampered"

	again := engine.RecentActions(1)
	if again[0].Status != model.ActionStatusSuccess || again[0].Result == "tampered" {
		t.Fatalf("mutating a returned action must not affect engine state: %+v", again[0])
	}
}

type fakeActionArchive struct {
	mu     sync.Mutex
	stored []*model.RemediationAction
}

func (f *fakeActionArchive) SaveAction(ctx context.Context, action *model.RemediationAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, action)
	return nil
}

func (f *fakeActionArchive) LoadActionsSince(ctx context.Context, since time.Time) ([]*model.RemediationAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.RemediationAction(nil), f.stored...), nil
}

func TestRestoreKeepsSafetyLimitsAcrossRestart(t *testing.T) {
	archive := &fakeActionArchive{}
	runner := newFakeRunner()

	first := NewRemediationEngine(nil, runner, nil, nil, archive, false, 10)
	first.SetIssueResolver(&fakeResolver{})
	first.Process(context.Background(), lowRiskIssue("nginx"), false)
	runner.waitCall(t)

	// 재시작 시뮬레이션: 새 엔진이 아카이브에서 히스토리 복원
	second := NewRemediationEngine(nil, runner, nil, nil, archive, false, 10)
	second.Restore(context.Background())

	decision := second.Evaluate(lowRiskIssue("nginx"), false)
	if decision.Outcome != DecisionSkipped || decision.Reason != SkipReasonCooldown {
		t.Fatalf("decision after restart = %s/%s, cooldown must survive restarts", decision.Outcome, decision.Reason)
	}
}

// waitFor - 비동기 상태 전이 폴링 (2초 타임아웃)
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
