// Remediation 게이트/실행 비즈니스 로직 정의
//
// 처리 흐름:
//  1. HandleIssue: 분류가 안 된 Issue면 RiskClassifier 호출
//  2. 게이트 평가 (한 락 안에서 체크 + PENDING 기록까지 수행)
//     - risk != low 또는 전역 승인 스위치 on → NEEDS_APPROVAL
//     - (target, action_type) 쿨다운 윈도우 내 실행 이력 → SKIPPED("cooldown")
//     - 최근 60분 전역 실행 수 >= 상한 → SKIPPED("rate_limit")
//     - 통과 → PENDING 액션 기록 후 AUTO_EXECUTE
//  3. 실행은 비동기 (접수/승인 호출자는 조치 완료를 기다리지 않음)
//  4. 실행 1회로 종결: 실패는 해당 action 레코드에서 끝, 자동 재시도 없음
//
// 쿨다운/레이트리밋은 별도 카운터가 아니라 기록된 액션 히스토리에서 계산.
// PENDING을 runner 호출 전에 기록하므로, 거의 동시에 들어온 두 평가가 모두
// 통과하는 race가 히스토리 스캔으로 자연히 막힘.

package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lab-sentinel/backend/internal/model"
)

// 게이트 판정 결과
type DecisionOutcome string

const (
	DecisionAutoExecute   DecisionOutcome = "auto_execute"
	DecisionNeedsApproval DecisionOutcome = "needs_approval"
	DecisionSkipped       DecisionOutcome = "skipped"
)

// 게이트 skip 사유 (감사 가능성을 위해 안정적인 문자열 유지)
const (
	SkipReasonCooldown  = "cooldown"
	SkipReasonRateLimit = "rate_limit"
	SkipReasonNoAction  = "no_action"
)

// Decision - 게이트 판정 + 사유
type Decision struct {
	Outcome DecisionOutcome `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`
}

// ActionRunner - 외부 조치 수행자 (조치 유형별 entry point)
type ActionRunner interface {
	RestartService(ctx context.Context, target string) (string, error)
	RestartContainer(ctx context.Context, target string) (string, error)
	CleanupDisk(ctx context.Context, target string) (string, error)
	RotateLogs(ctx context.Context, target string) (string, error)
	ScaleResource(ctx context.Context, target string) (string, error)
	RunCustom(ctx context.Context, target, command string) (string, error)
}

// engineNotifier - 조치 결과 알림 채널
type engineNotifier interface {
	Notify(text string) error
	SendActionOutcome(issue *model.Issue, action *model.RemediationAction) error
}

// issueResolver - 활성 Issue의 분류 기록과 조치 성공 시 해결 처리
//
// 엔진은 접수 시점의 스냅샷만 들고 다니므로, 활성 Issue 변경은 전부
// 이 인터페이스를 통해 Issue 서비스의 락 아래로 들어감.
type issueResolver interface {
	Resolve(fingerprint string) *model.Issue
	SetClassification(fingerprint string, risk model.RiskLevel, fix string, diag *model.Diagnosis)
}

// approvalRequester - 승인 워크플로우 연결점
type approvalRequester interface {
	Request(issue *model.Issue) (string, error)
}

// actionRecorder - 완료된 액션을 히스토리에 적재 (OutcomeTracker)
type actionRecorder interface {
	RecordAction(action *model.RemediationAction)
}

// actionArchive - 액션 write-through 저장소 (재시작 후 안전 한도 유지)
type actionArchive interface {
	SaveAction(ctx context.Context, action *model.RemediationAction) error
	LoadActionsSince(ctx context.Context, since time.Time) ([]*model.RemediationAction, error)
}

// RemediationEngine 구조체 정의
type RemediationEngine struct {
	mu      sync.Mutex
	actions []*model.RemediationAction

	classifier *RiskClassifier
	runner     ActionRunner
	notifier   engineNotifier
	issues     issueResolver
	approvals  approvalRequester
	outcomes   actionRecorder
	archive    actionArchive

	requireApproval bool
	maxPerHour      int
	execTimeout     time.Duration

	now func() time.Time
}

// RemediationEngine 객체 생성
func NewRemediationEngine(classifier *RiskClassifier, runner ActionRunner, notifier engineNotifier,
	outcomes actionRecorder, archive actionArchive, requireApproval bool, maxPerHour int) *RemediationEngine {
	if maxPerHour <= 0 {
		maxPerHour = 10
	}
	return &RemediationEngine{
		classifier:      classifier,
		runner:          runner,
		notifier:        notifier,
		outcomes:        outcomes,
		archive:         archive,
		requireApproval: requireApproval,
		maxPerHour:      maxPerHour,
		execTimeout:     5 * time.Minute,
		now:             time.Now,
	}
}

// SetIssueResolver / SetApprovals - 순환 참조 때문에 main에서 연결
func (e *RemediationEngine) SetIssueResolver(r issueResolver) { e.issues = r }
func (e *RemediationEngine) SetApprovals(a approvalRequester) { e.approvals = a }

// Restore - 아카이브에서 안전 한도 계산에 필요한 액션 히스토리 복원
func (e *RemediationEngine) Restore(ctx context.Context) {
	if e.archive == nil {
		return
	}

	window := model.LongestCooldown()
	if window < time.Hour {
		window = time.Hour // rate limit 윈도우보다 짧으면 안 됨
	}

	loaded, err := e.archive.LoadActionsSince(ctx, e.now().Add(-window))
	if err != nil {
		log.Printf("Failed to restore action history: %v", err)
		return
	}

	e.mu.Lock()
	e.actions = append(loaded, e.actions...)
	e.mu.Unlock()

	log.Printf("Restored action history (count=%d, window=%s)", len(loaded), window)
}

// HandleIssue - 새 Issue에 대한 분류 → 게이트 → 실행/승인 파이프라인
//
// issue는 접수 시점의 스냅샷: 분류는 스냅샷 위에서 수행하고 결과만
// SetClassification으로 활성 Issue에 써 넣음.
func (e *RemediationEngine) HandleIssue(ctx context.Context, issue *model.Issue) {
	if issue.RiskLevel == "" && e.classifier != nil {
		e.classifier.Classify(ctx, issue)
		if e.issues != nil {
			e.issues.SetClassification(issue.Fingerprint, issue.RiskLevel, issue.SuggestedFix, issue.Diagnosis)
		}
	}

	decision := e.Process(ctx, issue, false)
	log.Printf("Gate decision (issue_id=%s, outcome=%s, reason=%s)",
		issue.ShortID(), decision.Outcome, decision.Reason)
}

// Resume - 승인 완료된 Issue의 실행 재개 (게이트를 autoApprove로 재평가)
func (e *RemediationEngine) Resume(ctx context.Context, issue *model.Issue) Decision {
	decision := e.Process(ctx, issue, true)
	log.Printf("Resumed after approval (issue_id=%s, outcome=%s, reason=%s)",
		issue.ShortID(), decision.Outcome, decision.Reason)
	return decision
}

// Process - 게이트 평가 후 판정에 따라 실행 디스패치/승인 요청/스킵 기록
//
// AUTO_EXECUTE 판정과 PENDING 기록은 같은 락 안에서 이루어지므로
// 체크-통과 후 기록 지연으로 인한 이중 실행 race가 없음.
func (e *RemediationEngine) Process(ctx context.Context, issue *model.Issue, autoApprove bool) Decision {
	e.mu.Lock()
	decision, actionType, target := e.evaluateLocked(issue, autoApprove)

	if decision.Outcome != DecisionAutoExecute {
		e.mu.Unlock()

		switch decision.Outcome {
		case DecisionNeedsApproval:
			if e.approvals != nil {
				if _, err := e.approvals.Request(issue); err != nil {
					log.Printf("Failed to request approval (issue_id=%s): %v", issue.ShortID(), err)
				}
			}
		case DecisionSkipped:
			e.recordSkipped(issue, actionType, target, decision.Reason)
		}
		return decision
	}

	// runner 호출 전에 PENDING 기록 (두 번째 평가자는 쿨다운 스캔에 걸림)
	action := &model.RemediationAction{
		ActionID:        uuid.NewString(),
		Fingerprint:     issue.Fingerprint,
		Target:          target,
		Type:            actionType,
		Status:          model.ActionStatusPending,
		CooldownMinutes: model.CooldownMinutes(actionType),
		CreatedAt:       e.now(),
	}
	e.actions = append(e.actions, action)
	e.mu.Unlock()

	e.persist(action)

	// 실행은 접수/승인 호출자와 비동기
	go e.execute(context.Background(), issue, action)

	return decision
}

// Evaluate - 게이트 판정만 조회 (기록 없음, 테스트/조회용)
func (e *RemediationEngine) Evaluate(issue *model.Issue, autoApprove bool) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	decision, _, _ := e.evaluateLocked(issue, autoApprove)
	return decision
}

func (e *RemediationEngine) evaluateLocked(issue *model.Issue, autoApprove bool) (Decision, model.RemediationType, string) {
	actionType, ok := model.RemediationTypeFor(issue.IssueType)
	if !ok {
		return Decision{Outcome: DecisionSkipped, Reason: SkipReasonNoAction}, "", ""
	}
	target := buildTarget(actionType, issue)

	if !autoApprove && (issue.RiskLevel != model.RiskLow || e.requireApproval) {
		return Decision{Outcome: DecisionNeedsApproval}, actionType, target
	}

	if e.inCooldownLocked(target, actionType) {
		return Decision{Outcome: DecisionSkipped, Reason: SkipReasonCooldown}, actionType, target
	}

	if e.executedLastHourLocked() >= e.maxPerHour {
		return Decision{Outcome: DecisionSkipped, Reason: SkipReasonRateLimit}, actionType, target
	}

	return Decision{Outcome: DecisionAutoExecute}, actionType, target
}

// inCooldownLocked - (target, action_type) 쌍의 최근 실행이 쿨다운 안에 있는지
//
// PENDING/IN_PROGRESS도 포함해서 스캔 (in-flight 액션이 두 번째 평가를 막음).
func (e *RemediationEngine) inCooldownLocked(target string, actionType model.RemediationType) bool {
	cooldown := time.Duration(model.CooldownMinutes(actionType)) * time.Minute
	cutoff := e.now().Add(-cooldown)

	for i := len(e.actions) - 1; i >= 0; i-- {
		a := e.actions[i]
		if a.Target != target || a.Type != actionType || a.Status == model.ActionStatusSkipped {
			continue
		}
		at := a.CreatedAt
		if a.ExecutedAt != nil {
			at = *a.ExecutedAt
		}
		if at.After(cutoff) {
			return true
		}
	}
	return false
}

// executedLastHourLocked - 최근 60분간 전역 실행 수 (skip 기록은 제외)
func (e *RemediationEngine) executedLastHourLocked() int {
	cutoff := e.now().Add(-time.Hour)
	count := 0
	for _, a := range e.actions {
		if a.Status == model.ActionStatusSkipped {
			continue
		}
		if a.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count
}

// execute - 조치 1회 실행 (성공/실패 모두 해당 레코드에서 종결)
func (e *RemediationEngine) execute(ctx context.Context, issue *model.Issue, action *model.RemediationAction) {
	execCtx, cancel := context.WithTimeout(ctx, e.execTimeout)
	defer cancel()

	startedAt := e.now()
	e.mu.Lock()
	action.Status = model.ActionStatusInProgress
	action.ExecutedAt = &startedAt
	e.mu.Unlock()
	e.persist(action)

	log.Printf("Executing action (action_id=%s, type=%s, target=%s)",
		model.ShortID(action.ActionID), action.Type, action.Target)

	result, err := e.dispatch(execCtx, action, issue)

	e.mu.Lock()
	if err != nil {
		action.Status = model.ActionStatusFailed
		action.Error = err.Error()
	} else {
		action.Status = model.ActionStatusSuccess
		action.Result = result
	}
	e.mu.Unlock()
	e.persist(action)

	if err != nil {
		log.Printf("Action failed (action_id=%s, target=%s): %v",
			model.ShortID(action.ActionID), action.Target, err)
	} else {
		log.Printf("Action succeeded (action_id=%s, target=%s)",
			model.ShortID(action.ActionID), action.Target)
		// Issue 해결은 성공 시에만
		if e.issues != nil {
			e.issues.Resolve(issue.Fingerprint)
		}
	}

	if e.outcomes != nil {
		e.outcomes.RecordAction(action)
	}

	if e.notifier != nil {
		if nErr := e.notifier.SendActionOutcome(issue, action); nErr != nil {
			log.Printf("Failed to send action outcome notification: %v", nErr)
		}
	}
}

// dispatch - 조치 유형별 runner 호출
func (e *RemediationEngine) dispatch(ctx context.Context, action *model.RemediationAction, issue *model.Issue) (string, error) {
	if e.runner == nil {
		return "", fmt.Errorf("no action runner configured")
	}
	switch action.Type {
	case model.RemediationServiceRestart:
		return e.runner.RestartService(ctx, action.Target)
	case model.RemediationContainerRestart:
		return e.runner.RestartContainer(ctx, action.Target)
	case model.RemediationDiskCleanup:
		return e.runner.CleanupDisk(ctx, action.Target)
	case model.RemediationLogRotation:
		return e.runner.RotateLogs(ctx, action.Target)
	case model.RemediationResourceScale:
		return e.runner.ScaleResource(ctx, action.Target)
	default:
		return e.runner.RunCustom(ctx, action.Target, issue.SuggestedFix)
	}
}

// recordSkipped - 스킵 판정도 감사용으로 기록 (쿨다운/레이트리밋 계산에서는 제외)
func (e *RemediationEngine) recordSkipped(issue *model.Issue, actionType model.RemediationType, target, reason string) {
	if actionType == "" {
		return
	}

	action := &model.RemediationAction{
		ActionID:        uuid.NewString(),
		Fingerprint:     issue.Fingerprint,
		Target:          target,
		Type:            actionType,
		Status:          model.ActionStatusSkipped,
		CooldownMinutes: model.CooldownMinutes(actionType),
		CreatedAt:       e.now(),
		Result:          reason,
	}

	e.mu.Lock()
	e.actions = append(e.actions, action)
	e.mu.Unlock()
	e.persist(action)
}

// RecentActions - 최근 액션 조회 (최신순)
//
// in-flight 레코드는 실행 고루틴이 계속 갱신하므로 스냅샷을 반환.
func (e *RemediationEngine) RecentActions(limit int) []*model.RemediationAction {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := make([]*model.RemediationAction, 0, len(e.actions))
	for _, a := range e.actions {
		list = append(list, a.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

func (e *RemediationEngine) persist(action *model.RemediationAction) {
	if e.archive == nil {
		return
	}
	if err := e.archive.SaveAction(context.Background(), action); err != nil {
		log.Printf("Failed to archive action (action_id=%s): %v", model.ShortID(action.ActionID), err)
	}
}

// buildTarget - 쿨다운 스코프 키 생성 (예: "container:nginx")
func buildTarget(actionType model.RemediationType, issue *model.Issue) string {
	switch actionType {
	case model.RemediationContainerRestart:
		return "container:" + issue.Component
	case model.RemediationServiceRestart:
		return "service:" + issue.Component
	case model.RemediationDiskCleanup, model.RemediationLogRotation:
		return "path:" + issue.Component
	default:
		return issue.Component
	}
}
