// 결과 추적 비즈니스 로직 정의
//
// 처리 흐름:
//  1. RecordIssue: 해소된 Issue를 이력에 적재 (아카이브 write-through)
//     - 발생 시각은 component별 인덱스에도 넣어 재발 통계의 입력이 됨
//  2. RecordAction: 종결된 조치를 이력에 적재
//  3. Report: 기간 내 이력의 성공률/유형별 집계 반환
//
// 이력은 메모리 상한(1000건) 안에서 유지, 재시작 복원은 Postgres 아카이브가 담당.

package service

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

const outcomeHistoryLimit = 1000

// issueArchive - 해소 Issue 영속화 + 재시작 시 이력 복원 (nil이면 메모리 전용)
type issueArchive interface {
	SaveIssue(ctx context.Context, issue *model.Issue) error
	RecentResolvedIssues(ctx context.Context, limit int) ([]*model.Issue, error)
	ComponentFailureTimes(ctx context.Context, component string, since time.Time) ([]time.Time, error)
}

// issueIndexer - 해소 Issue를 유사 사례 검색용으로 색인
type issueIndexer interface {
	IndexIssue(ctx context.Context, issue *model.Issue)
}

// OutcomeService 구조체 정의
type OutcomeService struct {
	mu           sync.Mutex
	issues       []*model.Issue
	actions      []*model.RemediationAction
	failureTimes map[string][]time.Time // component -> 발생 시각 오름차순

	archive issueArchive
	indexer issueIndexer

	now func() time.Time
}

// OutcomeService 객체 생성
func NewOutcomeService(archive issueArchive) *OutcomeService {
	return &OutcomeService{
		failureTimes: make(map[string][]time.Time),
		archive:      archive,
		now:          time.Now,
	}
}

// SetIndexer - 유사 사례 색인기 연결 (main에서 호출)
func (s *OutcomeService) SetIndexer(indexer issueIndexer) {
	s.indexer = indexer
}

// Restore - 아카이브에서 이력 복원
//
// 재발 통계의 입력인 component별 발생 시각은 아카이브의 전체 occurrence
// 이력에서 다시 읽으므로 프로세스 재시작이 통계를 리셋하지 않음.
func (s *OutcomeService) Restore(ctx context.Context) {
	if s.archive == nil {
		return
	}

	loaded, err := s.archive.RecentResolvedIssues(ctx, outcomeHistoryLimit)
	if err != nil {
		log.Printf("Failed to restore resolved issue history: %v", err)
		return
	}

	components := make(map[string]bool)
	for _, issue := range loaded {
		if issue.Component != "" {
			components[issue.Component] = true
		}
	}

	s.mu.Lock()
	s.issues = append(loaded, s.issues...)
	s.mu.Unlock()

	since := s.now().Add(-failureHorizonHours * time.Hour)
	restored := 0
	for component := range components {
		times, err := s.archive.ComponentFailureTimes(ctx, component, since)
		if err != nil {
			log.Printf("Failed to restore failure times (component=%s): %v", component, err)
			continue
		}
		if len(times) == 0 {
			continue
		}
		s.mu.Lock()
		s.failureTimes[component] = times
		s.mu.Unlock()
		restored++
	}

	log.Printf("Restored outcome history (issues=%d, components=%d)", len(loaded), restored)
}

// RecordIssue - 해소된 Issue 적재
func (s *OutcomeService) RecordIssue(issue *model.Issue) {
	s.mu.Lock()
	s.issues = append(s.issues, issue)
	if len(s.issues) > outcomeHistoryLimit {
		s.issues = s.issues[len(s.issues)-outcomeHistoryLimit:]
	}
	s.failureTimes[issue.Component] = append(s.failureTimes[issue.Component], issue.StartedAt)
	s.mu.Unlock()

	if s.archive != nil {
		if err := s.archive.SaveIssue(context.Background(), issue); err != nil {
			log.Printf("Failed to archive resolved issue (fingerprint=%s): %v", issue.Fingerprint, err)
		}
	}
	if s.indexer != nil {
		go s.indexer.IndexIssue(context.Background(), issue)
	}
}

// RecordAction - 종결된 조치 적재
func (s *OutcomeService) RecordAction(action *model.RemediationAction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions = append(s.actions, action)
	if len(s.actions) > outcomeHistoryLimit {
		s.actions = s.actions[len(s.actions)-outcomeHistoryLimit:]
	}
}

// FailureComponents - 장애 이력이 있는 component 목록
func (s *OutcomeService) FailureComponents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	components := make([]string, 0, len(s.failureTimes))
	for component := range s.failureTimes {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// FailureTimes - component의 장애 발생 시각 (오름차순)
func (s *OutcomeService) FailureTimes(component string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	times := s.failureTimes[component]
	out := make([]time.Time, len(times))
	copy(out, times)
	return out
}

// Report - 기간 내 성공률/유형별 집계
func (s *OutcomeService) Report(window time.Duration) *model.OutcomeReportResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	since := s.now().Add(-window)
	report := &model.OutcomeReportResponse{
		WindowHours:    window.Hours(),
		ActionsByType:  make(map[string]int),
		IssuesByType:   make(map[string]int),
	}

	for _, action := range s.actions {
		if action.CreatedAt.Before(since) {
			continue
		}
		report.TotalActions++
		report.ActionsByType[string(action.Type)]++
		switch action.Status {
		case model.ActionStatusSuccess:
			report.Succeeded++
		case model.ActionStatusFailed:
			report.Failed++
		case model.ActionStatusSkipped:
			report.Skipped++
		}
	}
	if executed := report.Succeeded + report.Failed; executed > 0 {
		report.SuccessRate = float64(report.Succeeded) / float64(executed)
	}

	for _, issue := range s.issues {
		if issue.ResolvedAt == nil || issue.ResolvedAt.Before(since) {
			continue
		}
		report.ResolvedIssues++
		report.IssuesByType[issue.IssueType]++
	}

	return report
}
