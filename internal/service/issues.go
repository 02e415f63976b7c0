// Issue dedup/라이프사이클 비즈니스 로직 정의 (AlertManager)
//
// 처리 흐름:
//  1. ProcessWebhook: 알림 배치를 개별 Alert로 분해 (malformed는 skip, 배치는 계속)
//  2. fingerprint로 활성 Issue 조회
//     - 있으면: mutable 필드만 갱신 (중복 생성 금지)
//     - 없으면: FIRING 상태로 생성 + 등록된 콜백 전체 호출
//  3. resolved 알림: resolved_at 기록 + active set에서 제거 + 히스토리 기록
//     - ack 상태는 resolve 시 폐기 (재발화 시 오래된 ack가 남으면 안전 문제)
//  4. 새 firing Issue는 remediation 파이프라인에 비동기로 전달
//
// 활성 Issue의 변경은 전부 s.mu 아래에서 일어나며, 락 밖으로 나가는 값
// (조회 API, 콜백, 파이프라인 인자)은 전부 Clone 스냅샷. 라이브 포인터가
// 새어 나가면 재관측 갱신과 핸들러 직렬화가 같은 맵을 동시에 읽고 씀.

package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

// IssueCallback - Issue 생성/해결 시 호출되는 알림 콜백
//
// 개별 콜백 실패는 로그만 남기고 나머지 콜백 실행을 막지 않음.
type IssueCallback func(issue *model.Issue) error

// issueRemediator - 새 Issue를 처리할 remediation 파이프라인
type issueRemediator interface {
	HandleIssue(ctx context.Context, issue *model.Issue)
}

// issueRecorder - 해결된 Issue를 히스토리에 적재 (OutcomeTracker)
type issueRecorder interface {
	RecordIssue(issue *model.Issue)
}

// IssueService 구조체 정의
type IssueService struct {
	mu     sync.Mutex
	active map[string]*model.Issue

	callbacks  []IssueCallback
	remediator issueRemediator
	outcomes   issueRecorder

	now func() time.Time
}

// IssueService 객체 생성
func NewIssueService(outcomes issueRecorder) *IssueService {
	return &IssueService{
		active:   make(map[string]*model.Issue),
		outcomes: outcomes,
		now:      time.Now,
	}
}

// SetRemediator - remediation 파이프라인 연결 (main에서 호출)
func (s *IssueService) SetRemediator(r issueRemediator) {
	s.remediator = r
}

// RegisterCallback - 알림 콜백 등록
func (s *IssueService) RegisterCallback(cb IssueCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// ProcessWebhook - 알림 배치 처리
//
// 개별 알림이 malformed여도 배치의 나머지 알림 처리는 계속 진행.
func (s *IssueService) ProcessWebhook(webhook model.AlertWebhook) model.AlertWebhookResponse {
	res := model.AlertWebhookResponse{Status: "received", AlertCount: len(webhook.Alerts)}

	for _, alert := range webhook.Alerts {
		if alert.Labels["alertname"] == "" {
			log.Printf("Skipping malformed alert without alertname (fingerprint=%s)", alert.Fingerprint)
			res.Skipped++
			continue
		}

		if alert.Status == "resolved" {
			if issue := s.Resolve(alert.DedupKey()); issue != nil {
				res.Resolved++
			}
			continue
		}

		_, created := s.IngestAlert(alert)
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	return res
}

// IngestAlert - 외부 알림 1건을 Issue로 정규화하여 접수
func (s *IssueService) IngestAlert(alert model.Alert) (*model.Issue, bool) {
	issueType := alert.Labels["issue_type"]
	if issueType == "" {
		issueType = issueTypeFromAlertName(alert.Labels["alertname"])
	}

	metrics := make(map[string]string, len(alert.Labels))
	for k, v := range alert.Labels {
		metrics[k] = v
	}

	description := alert.Annotations["description"]
	if description == "" {
		description = alert.Annotations["summary"]
	}
	if description == "" {
		description = alert.Labels["alertname"]
	}

	startedAt := alert.StartsAt
	if startedAt.IsZero() {
		startedAt = s.now()
	}

	return s.ingest(&model.Issue{
		Fingerprint: alert.DedupKey(),
		Source:      "alertmanager",
		Component:   alert.Labels["instance"],
		IssueType:   issueType,
		Description: description,
		Severity:    model.ParseSeverity(alert.Labels["severity"]),
		Metrics:     metrics,
		StartedAt:   startedAt,
	})
}

// Report - 로컬 감지/합성 Issue 접수 (runner 헬스체크, 트렌드 예측 등)
func (s *IssueService) Report(source, component, issueType string, severity model.Severity, description string, metrics map[string]string) (*model.Issue, bool) {
	return s.ingest(&model.Issue{
		Fingerprint: model.NewFingerprint(source, component, issueType),
		Source:      source,
		Component:   component,
		IssueType:   issueType,
		Description: description,
		Severity:    severity,
		Metrics:     metrics,
		StartedAt:   s.now(),
	})
}

// ingest - fingerprint 기준 upsert (직렬화 구간)
func (s *IssueService) ingest(incoming *model.Issue) (*model.Issue, bool) {
	s.mu.Lock()

	if existing, ok := s.active[incoming.Fingerprint]; ok {
		// 재발화/반복 관측: mutable 필드만 갱신, 상태는 유지
		existing.Description = incoming.Description
		existing.Severity = incoming.Severity
		for k, v := range incoming.Metrics {
			if existing.Metrics == nil {
				existing.Metrics = make(map[string]string)
			}
			existing.Metrics[k] = v
		}
		// silence 윈도우가 지났으면 firing으로 복귀
		if existing.Status == model.IssueStatusSilenced &&
			existing.SilencedUntil != nil && s.now().After(*existing.SilencedUntil) {
			existing.Status = model.IssueStatusFiring
			existing.SilencedUntil = nil
		}
		snapshot := existing.Clone()
		s.mu.Unlock()
		return snapshot, false
	}

	incoming.Status = model.IssueStatusFiring
	s.active[incoming.Fingerprint] = incoming
	callbacks := append([]IssueCallback(nil), s.callbacks...)
	snapshot := incoming.Clone()
	var handoff *model.Issue
	if s.remediator != nil {
		handoff = incoming.Clone()
	}
	s.mu.Unlock()

	log.Printf("Created issue (issue_id=%s, component=%s, type=%s, severity=%s)",
		incoming.ShortID(), incoming.Component, incoming.IssueType, incoming.Severity)

	s.fanOut(callbacks, snapshot)

	if handoff != nil {
		go s.remediator.HandleIssue(context.Background(), handoff)
	}

	return snapshot, true
}

// Resolve - Issue 해결 처리
//
// ack 상태는 여기서 폐기됨: 재발화한 Issue는 FIRING으로 새로 시작해야 하며
// 이전 인시던트의 ack가 새 인시던트에 남는 것은 안전 문제.
func (s *IssueService) Resolve(fingerprint string) *model.Issue {
	s.mu.Lock()
	issue, ok := s.active[fingerprint]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	resolvedAt := s.now()
	issue.Status = model.IssueStatusResolved
	issue.ResolvedAt = &resolvedAt
	issue.AcknowledgedAt = nil
	issue.AcknowledgedBy = ""
	issue.SilencedUntil = nil
	// active set에서 빠지면 이후 갱신 경로가 없으므로 여기부터는 불변
	delete(s.active, fingerprint)
	callbacks := append([]IssueCallback(nil), s.callbacks...)
	s.mu.Unlock()

	log.Printf("Resolved issue (issue_id=%s, component=%s)", issue.ShortID(), issue.Component)

	if s.outcomes != nil {
		s.outcomes.RecordIssue(issue)
	}
	s.fanOut(callbacks, issue)

	return issue
}

// Acknowledge - Issue 확인 처리 (FIRING에서만 유효)
func (s *IssueService) Acknowledge(ref, actor string) *model.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue := s.findLocked(ref)
	if issue == nil || issue.Status != model.IssueStatusFiring {
		return nil
	}

	ackedAt := s.now()
	issue.Status = model.IssueStatusAcknowledged
	issue.AcknowledgedAt = &ackedAt
	issue.AcknowledgedBy = actor

	log.Printf("Acknowledged issue (issue_id=%s, actor=%s)", issue.ShortID(), actor)
	return issue.Clone()
}

// Silence - Issue 알림 억제 (resolved 이외 모든 상태에서 유효)
//
// 근본 원인을 멈추지는 않으며 알림/재알림만 억제.
func (s *IssueService) Silence(ref string, minutes int) *model.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue := s.findLocked(ref)
	if issue == nil {
		return nil
	}

	until := s.now().Add(time.Duration(minutes) * time.Minute)
	issue.Status = model.IssueStatusSilenced
	issue.SilencedUntil = &until

	log.Printf("Silenced issue (issue_id=%s, minutes=%d)", issue.ShortID(), minutes)
	return issue.Clone()
}

// SetClassification - 분류 결과를 활성 Issue에 반영
//
// 분류 자체는 파이프라인이 받은 스냅샷 위에서 수행되므로, 결과는 이
// 메서드를 통해서만 활성 Issue에 기록됨. 이미 해결된 Issue면 no-op.
func (s *IssueService) SetClassification(fingerprint string, risk model.RiskLevel, fix string, diag *model.Diagnosis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.active[fingerprint]
	if !ok {
		return
	}

	issue.RiskLevel = risk
	if fix != "" {
		issue.SuggestedFix = fix
	}
	if diag != nil {
		d := *diag
		issue.Diagnosis = &d
	}
}

// Get - fingerprint 또는 prefix로 활성 Issue 조회
func (s *IssueService) Get(ref string) *model.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue := s.findLocked(ref)
	if issue == nil {
		return nil
	}
	return issue.Clone()
}

// findLocked - 정확 매치 우선, 없으면 prefix 매치
//
// prefix 충돌 시 첫 매치를 반환 (알려진 한계; 8자 short id 기준 실사용에서
// 충돌 확률이 낮아 에러로 처리하지 않음).
func (s *IssueService) findLocked(ref string) *model.Issue {
	if issue, ok := s.active[ref]; ok {
		return issue
	}
	for fp, issue := range s.active {
		if strings.HasPrefix(fp, ref) {
			return issue
		}
	}
	return nil
}

// ActiveIssues - 활성 Issue 스냅샷 (최신순)
func (s *IssueService) ActiveIssues() []*model.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*model.Issue, 0, len(s.active))
	for _, issue := range s.active {
		list = append(list, issue.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.After(list[j].StartedAt)
	})
	return list
}

// Stats - 상태/심각도별 카운트 (읽기 전용, 상태 변경 없음)
func (s *IssueService) Stats() model.IssueStatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := model.IssueStatsResponse{
		Total:      len(s.active),
		ByStatus:   make(map[model.IssueStatus]int),
		BySeverity: make(map[model.Severity]int),
	}
	for _, issue := range s.active {
		stats.ByStatus[issue.Status]++
		stats.BySeverity[issue.Severity]++
	}
	return stats
}

// fanOut - 콜백 전체 호출 (실패 격리)
func (s *IssueService) fanOut(callbacks []IssueCallback, issue *model.Issue) {
	for _, cb := range callbacks {
		if err := cb(issue); err != nil {
			log.Printf("Issue callback failed (issue_id=%s): %v", issue.ShortID(), err)
		}
	}
}

// issueTypeFromAlertName - 잘 알려진 alertname을 issue 유형으로 변환
func issueTypeFromAlertName(name string) string {
	switch {
	case strings.Contains(name, "Container"):
		return model.IssueTypeContainerStopped
	case strings.Contains(name, "Service"):
		return model.IssueTypeServiceDown
	case strings.Contains(name, "Daemon"):
		return model.IssueTypeDaemonUnhealthy
	case strings.Contains(name, "Host") && strings.Contains(name, "Down"):
		return model.IssueTypeHostDown
	case strings.Contains(name, "Memory"):
		return model.IssueTypeHighMemory
	case strings.Contains(name, "CPU"):
		return model.IssueTypeHighCPU
	case strings.Contains(name, "Disk"):
		return model.IssueTypeHighDisk
	default:
		return strings.ToLower(name)
	}
}
