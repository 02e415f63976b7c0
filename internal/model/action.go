// RemediationAction 모델
//
// action_id는 시도 단위로 유일 (재시도는 새 action). 쿨다운은 (target, type)
// 쌍으로 스코핑되며, 액션 유형별로 비대칭 윈도우를 가짐.

package model

import "time"

// 조치 유형
type RemediationType string

const (
	RemediationServiceRestart   RemediationType = "service_restart"
	RemediationContainerRestart RemediationType = "container_restart"
	RemediationDiskCleanup      RemediationType = "disk_cleanup"
	RemediationLogRotation      RemediationType = "log_rotation"
	RemediationResourceScale    RemediationType = "resource_scale"
	RemediationCustom           RemediationType = "custom"
)

// Action 상태
type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusInProgress ActionStatus = "in_progress"
	ActionStatusSuccess    ActionStatus = "success"
	ActionStatusFailed     ActionStatus = "failed"
	ActionStatusSkipped    ActionStatus = "skipped"
)

// 유형별 쿨다운 (분)
//
// 파괴적/비싼 액션일수록 긴 정지 기간을 가짐.
var cooldownMinutes = map[RemediationType]int{
	RemediationServiceRestart:   15,
	RemediationContainerRestart: 10,
	RemediationDiskCleanup:      60,
	RemediationLogRotation:      30,
	RemediationResourceScale:    60,
	RemediationCustom:           30,
}

// CooldownMinutes - 조치 유형의 쿨다운 (모르는 유형은 30분)
func CooldownMinutes(t RemediationType) int {
	if m, ok := cooldownMinutes[t]; ok {
		return m
	}
	return 30
}

// LongestCooldown - 테이블에서 가장 긴 쿨다운
//
// 프로세스 재시작 시 아카이브에서 복원할 액션 히스토리 범위를 결정.
func LongestCooldown() time.Duration {
	max := 0
	for _, m := range cooldownMinutes {
		if m > max {
			max = m
		}
	}
	return time.Duration(max) * time.Minute
}

// issue 유형 → 기본 조치 유형 매핑 (게이트의 action 플래닝에 사용)
var remediationPlans = map[string]RemediationType{
	IssueTypeContainerStopped:          RemediationContainerRestart,
	IssueTypeServiceDown:               RemediationServiceRestart,
	IssueTypeDaemonUnhealthy:           RemediationServiceRestart,
	IssueTypeHighMemory:                RemediationServiceRestart,
	IssueTypeHighDisk:                  RemediationDiskCleanup,
	IssueTypeLogGrowth:                 RemediationLogRotation,
	IssueTypeDiskFullPredicted:         RemediationDiskCleanup,
	IssueTypeMemoryExhaustionPredicted: RemediationServiceRestart,
}

// RemediationTypeFor - issue 유형에 대응하는 조치 유형 (없으면 ok=false)
func RemediationTypeFor(issueType string) (RemediationType, bool) {
	t, ok := remediationPlans[issueType]
	return t, ok
}

// RemediationAction 구조체 정의
//
// SUCCESS/FAILED 이후에는 불변. 실패는 해당 레코드에서 종결되며 자동 재시도 없음.
type RemediationAction struct {
	ActionID        string          `json:"action_id"`
	Fingerprint     string          `json:"fingerprint"` // 대상 Issue
	Target          string          `json:"target"`      // 쿨다운 스코프 키, 예: "container:nginx"
	Type            RemediationType `json:"action_type"`
	Status          ActionStatus    `json:"status"`
	CooldownMinutes int             `json:"cooldown_minutes"`
	CreatedAt       time.Time       `json:"created_at"`
	ExecutedAt      *time.Time      `json:"executed_at,omitempty"`
	Result          string          `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// Clone - 값 스냅샷 생성
//
// in-flight 액션은 실행 고루틴이 엔진 락 아래에서 상태를 갱신하므로,
// 조회 API로 내보내는 레코드는 복사본이어야 함.
func (a *RemediationAction) Clone() *RemediationAction {
	out := *a
	if a.ExecutedAt != nil {
		t := *a.ExecutedAt
		out.ExecutedAt = &t
	}
	return &out
}
