// Issue 모델 (dedup/라이프사이클 단위)
//
// 외부 알림(Alertmanager 웹훅)과 로컬/합성 감지 이슈를 하나의 엔티티로 정규화.
// fingerprint 기준으로 활성 Issue는 항상 1개만 존재.

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Issue 상태
type IssueStatus string

const (
	IssueStatusFiring       IssueStatus = "firing"
	IssueStatusAcknowledged IssueStatus = "acknowledged"
	IssueStatusSilenced     IssueStatus = "silenced"
	IssueStatusResolved     IssueStatus = "resolved"
)

// 심각도 (알림 소스에서 전달)
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ParseSeverity - 소스가 보낸 severity 문자열 정규화 (모르는 값은 warning)
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return Severity(s)
	}
	return SeverityWarning
}

// 위험 등급 - 자동 실행/승인 분기를 결정
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRiskLevel - 오라클이 반환한 risk 문자열 검증
//
// {low, medium, high} 이외의 값은 신뢰하지 않음 (ok=false).
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s), true
	}
	return "", false
}

// Issue 유형
const (
	IssueTypeContainerStopped    = "container_stopped"
	IssueTypeServiceDown         = "service_down"
	IssueTypeDaemonUnhealthy     = "daemon_unhealthy"
	IssueTypeHostDown            = "host_down"
	IssueTypeHighMemory          = "high_memory"
	IssueTypeHighCPU             = "high_cpu"
	IssueTypeHighDisk            = "high_disk"
	IssueTypeLogGrowth           = "log_growth"
	IssueTypeDiskFullPredicted   = "disk_full_predicted"
	IssueTypeMemoryExhaustionPredicted = "memory_exhaustion_predicted"
	IssueTypeRecurringFailure    = "recurring_failure_predicted"
)

// 유형별 기본 위험 등급 - 오라클 실패/타임아웃 시 폴백 테이블
//
// 폴백이 승인 게이트를 우회하면 안 되므로, 테이블에 없는 유형은 medium.
var defaultRiskLevels = map[string]RiskLevel{
	IssueTypeContainerStopped:          RiskLow,
	IssueTypeServiceDown:               RiskMedium,
	IssueTypeDaemonUnhealthy:           RiskHigh,
	IssueTypeHostDown:                  RiskHigh,
	IssueTypeHighMemory:                RiskMedium,
	IssueTypeHighCPU:                   RiskLow,
	IssueTypeHighDisk:                  RiskMedium,
	IssueTypeLogGrowth:                 RiskLow,
	IssueTypeDiskFullPredicted:         RiskMedium,
	IssueTypeMemoryExhaustionPredicted: RiskMedium,
	IssueTypeRecurringFailure:          RiskMedium,
}

// DefaultRiskLevel - issue 유형의 정적 기본 위험 등급
func DefaultRiskLevel(issueType string) RiskLevel {
	if level, ok := defaultRiskLevels[issueType]; ok {
		return level
	}
	return RiskMedium
}

// Diagnosis - 진단 오라클의 구조화된 응답
//
// 오라클 출력은 신뢰하지 않음: RiskLevel은 ParseRiskLevel로 검증 후 사용.
type Diagnosis struct {
	RootCause    string `json:"root_cause"`
	SuggestedFix string `json:"remediation"`
	RiskLevel    string `json:"risk_level"`
	Reasoning    string `json:"reasoning"`
}

// Issue 구조체 정의
type Issue struct {
	Fingerprint string      `json:"fingerprint"`
	Source      string      `json:"source"`     // 예: "alertmanager", "runner", "trend"
	Component   string      `json:"component"`  // 예: "nginx", "pve1:/var/lib/vz"
	IssueType   string      `json:"issue_type"` // 예: "container_stopped"
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
	Status      IssueStatus `json:"status"`

	// 분류 전에는 빈 값, RiskClassifier가 채움
	RiskLevel    RiskLevel  `json:"risk_level,omitempty"`
	SuggestedFix string     `json:"suggested_fix,omitempty"`
	Diagnosis    *Diagnosis `json:"diagnosis,omitempty"`

	Metrics map[string]string `json:"metrics,omitempty"`

	StartedAt      time.Time  `json:"started_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	SilencedUntil  *time.Time `json:"silenced_until,omitempty"`
}

// NewFingerprint - 로컬/합성 이슈의 안정적인 identity 생성
//
// 외부 알림은 소스가 fingerprint를 제공하므로 이 함수를 쓰지 않음.
func NewFingerprint(source, component, issueType string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", source, component, issueType)))
	return hex.EncodeToString(sum[:])
}

// ShortID - 사용자 노출용 8자리 short id
func (i *Issue) ShortID() string {
	return ShortID(i.Fingerprint)
}

// Clone - 값 스냅샷 생성
//
// 활성 Issue는 수신/분류 고루틴이 계속 갱신하므로, 서비스 락 밖으로
// 내보내는 쪽(핸들러 직렬화, 콜백, 파이프라인 전달)은 항상 복사본을 받음.
func (i *Issue) Clone() *Issue {
	out := *i
	if i.Metrics != nil {
		out.Metrics = make(map[string]string, len(i.Metrics))
		for k, v := range i.Metrics {
			out.Metrics[k] = v
		}
	}
	if i.Diagnosis != nil {
		d := *i.Diagnosis
		out.Diagnosis = &d
	}
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		out.ResolvedAt = &t
	}
	if i.AcknowledgedAt != nil {
		t := *i.AcknowledgedAt
		out.AcknowledgedAt = &t
	}
	if i.SilencedUntil != nil {
		t := *i.SilencedUntil
		out.SilencedUntil = &t
	}
	return &out
}

// ShortID - fingerprint/approval id의 앞 8자
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
