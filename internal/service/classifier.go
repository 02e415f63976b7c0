// Issue 위험 등급 분류 비즈니스 로직 정의
//
// 처리 흐름:
//  1. 임베딩 저장소에서 유사 과거 이슈 조회 (있으면 프롬프트에 포함)
//  2. 진단 오라클 호출 (타임아웃 + 서킷브레이커)
//  3. 오라클의 risk 문자열 검증 - {low, medium, high} 밖의 값은 medium
//  4. 오라클 실패/타임아웃: issue 유형별 정적 기본 등급으로 폴백
//
// 폴백이 low로 내려가면 승인 게이트를 우회하므로, 실패 시 기본값은 절대
// 유형 테이블보다 낮아지지 않음 (모르는 유형은 medium).

package service

import (
	"context"
	"log"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
	"github.com/sony/gobreaker"
)

// DiagnosisOracle - 외부 진단 오라클 (LLM, 룰 파일, 사람 무엇이든 가능)
type DiagnosisOracle interface {
	Diagnose(ctx context.Context, issue *model.Issue, similar []string) (*model.Diagnosis, error)
}

// similarFinder - 유사 과거 이슈 검색 (임베딩 저장소)
type similarFinder interface {
	SimilarIncidents(ctx context.Context, issue *model.Issue) []string
}

// RiskClassifier 구조체 정의
type RiskClassifier struct {
	oracle  DiagnosisOracle
	similar similarFinder
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// RiskClassifier 객체 생성
//
// oracle이 nil이면 항상 정적 기본 등급을 사용.
func NewRiskClassifier(oracle DiagnosisOracle, similar similarFinder, timeout time.Duration) *RiskClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "diagnosis-oracle",
		MaxRequests: 1,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &RiskClassifier{
		oracle:  oracle,
		similar: similar,
		breaker: breaker,
		timeout: timeout,
	}
}

// Classify - Issue에 위험 등급/제안 조치를 부여
func (c *RiskClassifier) Classify(ctx context.Context, issue *model.Issue) {
	if c.oracle == nil {
		issue.RiskLevel = model.DefaultRiskLevel(issue.IssueType)
		return
	}

	var similar []string
	if c.similar != nil {
		similar = c.similar.SimilarIncidents(ctx, issue)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.oracle.Diagnose(callCtx, issue, similar)
	})
	if err != nil {
		fallback := model.DefaultRiskLevel(issue.IssueType)
		log.Printf("Diagnosis oracle unavailable, using static default risk (issue_id=%s, type=%s, risk=%s): %v",
			issue.ShortID(), issue.IssueType, fallback, err)
		issue.RiskLevel = fallback
		return
	}

	diag, ok := result.(*model.Diagnosis)
	if !ok || diag == nil {
		// 에러 없이 진단이 비어 있어도 실패와 동일하게 정적 기본값으로
		fallback := model.DefaultRiskLevel(issue.IssueType)
		log.Printf("Diagnosis oracle returned no diagnosis, using static default risk (issue_id=%s, risk=%s)",
			issue.ShortID(), fallback)
		issue.RiskLevel = fallback
		return
	}

	risk, ok := model.ParseRiskLevel(diag.RiskLevel)
	if !ok {
		// 검증 실패 시 medium: low로 내리면 게이트 우회가 되므로 금지
		log.Printf("Oracle returned invalid risk level %q, defaulting to medium (issue_id=%s)",
			diag.RiskLevel, issue.ShortID())
		risk = model.RiskMedium
	}

	issue.RiskLevel = risk
	issue.Diagnosis = diag
	if diag.SuggestedFix != "" {
		issue.SuggestedFix = diag.SuggestedFix
	}

	log.Printf("Classified issue (issue_id=%s, risk=%s)", issue.ShortID(), risk)
}
