package model

import "time"

// ApprovalRequest - 사람 승인 대기 항목
//
// approval_id는 Issue fingerprint와 동일 (prefix 조회 가능).
// Issue당 동시에 하나만 존재하며 approve/reject/expire 중 정확히 하나로 종결.
type ApprovalRequest struct {
	ApprovalID  string    `json:"approval_id"`
	Fingerprint string    `json:"fingerprint"`
	Component   string    `json:"component"`
	IssueType   string    `json:"issue_type"`
	Summary     string    `json:"summary"`
	RequestedAt time.Time `json:"requested_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ShortID - 사용자 노출용 8자리 short id
func (r *ApprovalRequest) ShortID() string {
	return ShortID(r.ApprovalID)
}
