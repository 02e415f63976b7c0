// 승인 워크플로우 비즈니스 로직 정의
//
// 처리 흐름:
//  1. Request: 승인 대기 항목 생성 (Issue당 1개, 재요청은 만료만 갱신)
//  2. 알림 채널에 승인 프롬프트 전송 (short id 포함)
//  3. Resolve: 정확 매치 → prefix 매치 순으로 조회
//     - 없음/이미 종결 → ErrApprovalNotFound (no-op)
//     - 만료 → ErrApprovalExpired (항목 즉시 제거)
//     - approve → 항목 제거 후 비동기로 실행 재개 (승인자 채널은 블록 안 됨)
//     - reject → 항목 제거, 거절 알림, Issue는 열린 채 유지
//  4. 항목은 종결 즉시 제거되므로 같은 id로 두 번째 resolve는 항상 no-op
//
// 만료는 resolve 시점에 lazy 체크하고, 백그라운드 스위퍼가 주기적으로
// 만료 항목을 비워 pending set이 무한히 자라지 않게 한다.

package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

var (
	ErrApprovalNotFound = errors.New("approval not found or already resolved")
	ErrApprovalExpired  = errors.New("approval expired")
)

// 승인 만료의 하드 상한
const maxApprovalTTL = 24 * time.Hour

// remediationResumer - 승인 후 실행을 재개할 엔진
type remediationResumer interface {
	Resume(ctx context.Context, issue *model.Issue) Decision
}

// approvalNotifier - 승인 프롬프트/결과 알림 채널
type approvalNotifier interface {
	Notify(text string) error
	RequestApproval(issue *model.Issue, approvalID string, expiresAt time.Time) error
}

// approvalArchive - 승인 대기 write-through 저장소
type approvalArchive interface {
	SaveApproval(ctx context.Context, req *model.ApprovalRequest) error
	DeleteApproval(ctx context.Context, approvalID string) error
}

type pendingApproval struct {
	req   *model.ApprovalRequest
	issue *model.Issue
}

// ApprovalService 구조체 정의
type ApprovalService struct {
	mu      sync.Mutex
	pending map[string]*pendingApproval

	resumer  remediationResumer
	notifier approvalNotifier
	archive  approvalArchive
	ttl      time.Duration

	now func() time.Time
}

// ApprovalService 객체 생성
func NewApprovalService(resumer remediationResumer, notifier approvalNotifier, archive approvalArchive, ttl time.Duration) *ApprovalService {
	if ttl <= 0 || ttl > maxApprovalTTL {
		ttl = maxApprovalTTL
	}
	return &ApprovalService{
		pending:  make(map[string]*pendingApproval),
		resumer:  resumer,
		notifier: notifier,
		archive:  archive,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Request - 승인 요청 생성
func (s *ApprovalService) Request(issue *model.Issue) (string, error) {
	s.mu.Lock()

	approvalID := issue.Fingerprint
	if existing, ok := s.pending[approvalID]; ok {
		// Issue당 동시에 하나만: 재요청은 만료 시각만 갱신
		existing.req.ExpiresAt = s.now().Add(s.ttl)
		s.mu.Unlock()
		return approvalID, nil
	}

	req := &model.ApprovalRequest{
		ApprovalID:  approvalID,
		Fingerprint: issue.Fingerprint,
		Component:   issue.Component,
		IssueType:   issue.IssueType,
		Summary:     issue.Description,
		RequestedAt: s.now(),
		ExpiresAt:   s.now().Add(s.ttl),
	}
	s.pending[approvalID] = &pendingApproval{req: req, issue: issue}
	s.mu.Unlock()

	log.Printf("Approval requested (approval_id=%s, component=%s, risk=%s)",
		req.ShortID(), issue.Component, issue.RiskLevel)

	if s.archive != nil {
		if err := s.archive.SaveApproval(context.Background(), req); err != nil {
			log.Printf("Failed to archive approval (approval_id=%s): %v", req.ShortID(), err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.RequestApproval(issue, approvalID, req.ExpiresAt); err != nil {
			log.Printf("Failed to send approval prompt (approval_id=%s): %v", req.ShortID(), err)
		}
	}

	return approvalID, nil
}

// Resolve - 승인/거절 처리 (단일 사용 보장)
func (s *ApprovalService) Resolve(ref string, approved bool, actor string) error {
	s.mu.Lock()

	id, entry := s.findLocked(ref)
	if entry == nil {
		s.mu.Unlock()
		return ErrApprovalNotFound
	}

	// 항목은 어떤 종결이든 즉시 제거 → 두 번째 resolve는 항상 no-op
	delete(s.pending, id)
	s.mu.Unlock()

	s.dropArchived(id)

	if s.now().After(entry.req.ExpiresAt) {
		log.Printf("Approval expired before resolution (approval_id=%s)", entry.req.ShortID())
		return ErrApprovalExpired
	}

	if !approved {
		log.Printf("Approval rejected (approval_id=%s, actor=%s)", entry.req.ShortID(), actor)
		s.notify("❌ 조치가 거절되었습니다: " + entry.issue.Component + "/" + entry.issue.IssueType)
		return nil
	}

	log.Printf("Approval granted (approval_id=%s, actor=%s)", entry.req.ShortID(), actor)

	// 승인자 채널이 조치 완료를 기다리지 않도록 비동기로 재개
	if s.resumer != nil {
		issue := entry.issue
		go s.resumer.Resume(context.Background(), issue)
	}

	return nil
}

// Pending - 승인 대기 목록 조회 (요청 시각순)
func (s *ApprovalService) Pending() []*model.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*model.ApprovalRequest, 0, len(s.pending))
	for _, entry := range s.pending {
		list = append(list, entry.req)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].RequestedAt.Before(list[j].RequestedAt)
	})
	return list
}

// Sweep - 만료 항목 제거
func (s *ApprovalService) Sweep() int {
	s.mu.Lock()
	var expired []string
	for id, entry := range s.pending {
		if s.now().After(entry.req.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, id := range expired {
		log.Printf("Approval expired (approval_id=%s)", model.ShortID(id))
		s.dropArchived(id)
	}
	return len(expired)
}

// StartSweeper - 백그라운드 만료 스위퍼 실행
func (s *ApprovalService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// findLocked - 정확 매치 우선, 없으면 prefix 매치 (충돌 시 첫 매치)
func (s *ApprovalService) findLocked(ref string) (string, *pendingApproval) {
	if entry, ok := s.pending[ref]; ok {
		return ref, entry
	}
	for id, entry := range s.pending {
		if strings.HasPrefix(id, ref) {
			return id, entry
		}
	}
	return "", nil
}

func (s *ApprovalService) dropArchived(id string) {
	if s.archive == nil {
		return
	}
	if err := s.archive.DeleteApproval(context.Background(), id); err != nil {
		log.Printf("Failed to remove archived approval (approval_id=%s): %v", model.ShortID(id), err)
	}
}

func (s *ApprovalService) notify(text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(text); err != nil {
		log.Printf("Failed to send approval notification: %v", err)
	}
}
