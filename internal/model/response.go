package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type AlertWebhookResponse struct {
	Status     string `json:"status"`
	AlertCount int    `json:"alertCount"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Resolved   int    `json:"resolved"`
	Skipped    int    `json:"skipped"`
}

// IssueStatsResponse - 활성 Issue 상태/심각도별 카운트
type IssueStatsResponse struct {
	Total      int                 `json:"total"`
	ByStatus   map[IssueStatus]int `json:"by_status"`
	BySeverity map[Severity]int    `json:"by_severity"`
}

// ReportIssueRequest - 로컬 감지 이슈 접수 요청 (runner 등에서 사용)
type ReportIssueRequest struct {
	Source      string            `json:"source" binding:"required"`
	Component   string            `json:"component" binding:"required"`
	IssueType   string            `json:"issue_type" binding:"required"`
	Severity    string            `json:"severity"`
	Description string            `json:"description"`
	Metrics     map[string]string `json:"metrics"`
	Resolved    bool              `json:"resolved"`
}

type AcknowledgeRequest struct {
	Actor string `json:"actor"`
}

type SilenceRequest struct {
	Minutes int `json:"minutes" binding:"required"`
}

type ResolveApprovalRequest struct {
	Approved bool   `json:"approved"`
	Actor    string `json:"actor"`
}

// MetricSampleRequest - runner가 주기적으로 푸시하는 메트릭 샘플
type MetricSampleRequest struct {
	Component string  `json:"component" binding:"required"`
	Metric    string  `json:"metric" binding:"required"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"` // RFC3339, 비어 있으면 수신 시각
}

// OutcomeReportResponse - 최근 처리 결과 요약 (기간 내 성공률/유형별 집계)
type OutcomeReportResponse struct {
	WindowHours    float64        `json:"window_hours"`
	TotalActions   int            `json:"total_actions"`
	Succeeded      int            `json:"succeeded"`
	Failed         int            `json:"failed"`
	Skipped        int            `json:"skipped"`
	SuccessRate    float64        `json:"success_rate"`
	ActionsByType  map[string]int `json:"actions_by_type"`
	ResolvedIssues int            `json:"resolved_issues"`
	IssuesByType   map[string]int `json:"issues_by_type"`
}

type AuthLoginRequest struct {
	LoginID  string `json:"loginId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type AuthRefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type AuthMeResponse struct {
	UserID  int64  `json:"userId"`
	LoginID string `json:"loginId"`
}
