// Package template provides notification text template rendering.
//
// 지원하는 변수 형식:
//
//	{{issue.id}}, {{issue.component}}, {{issue.type}}, {{issue.severity}},
//	{{issue.status}}, {{issue.risk}}, {{issue.description}}, {{issue.fix}},
//	{{issue.started_at}}
//
//	{{action.id}}, {{action.type}}, {{action.target}}, {{action.status}},
//	{{action.result}}, {{action.error}}
//
//	{{approval.id}}, {{approval.expires_at}}
package template

import (
	"strings"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

// IssueData - 템플릿 렌더링에 사용할 Issue 데이터
type IssueData struct {
	ShortID     string
	Component   string
	IssueType   string
	Severity    string
	Status      string
	Risk        string
	Description string
	Fix         string
	StartedAt   time.Time
}

// ActionData - 템플릿 렌더링에 사용할 Action 데이터
type ActionData struct {
	ShortID string
	Type    string
	Target  string
	Status  string
	Result  string
	Error   string
}

// ApprovalData - 템플릿 렌더링에 사용할 승인 요청 데이터
type ApprovalData struct {
	ShortID   string
	ExpiresAt time.Time
}

// IssueDataFrom - model.Issue에서 IssueData 생성
func IssueDataFrom(issue *model.Issue) IssueData {
	return IssueData{
		ShortID:     issue.ShortID(),
		Component:   issue.Component,
		IssueType:   issue.IssueType,
		Severity:    string(issue.Severity),
		Status:      string(issue.Status),
		Risk:        string(issue.RiskLevel),
		Description: issue.Description,
		Fix:         issue.SuggestedFix,
		StartedAt:   issue.StartedAt,
	}
}

// ActionDataFrom - model.RemediationAction에서 ActionData 생성
func ActionDataFrom(action *model.RemediationAction) ActionData {
	return ActionData{
		ShortID: model.ShortID(action.ActionID),
		Type:    string(action.Type),
		Target:  action.Target,
		Status:  string(action.Status),
		Result:  action.Result,
		Error:   action.Error,
	}
}

// RenderBody - 템플릿의 변수를 실제 값으로 치환
//
// issue/action/approval 중 일부만 전달해도 동작합니다.
// nil로 전달된 항목의 변수는 빈 문자열로 치환됩니다.
func RenderBody(body string, issue *IssueData, action *ActionData, approval *ApprovalData) string {
	pairs := make([]string, 0, 36)

	// --- Issue 변수 ---
	if issue != nil {
		pairs = append(pairs,
			"{{issue.id}}", issue.ShortID,
			"{{issue.component}}", issue.Component,
			"{{issue.type}}", issue.IssueType,
			"{{issue.severity}}", issue.Severity,
			"{{issue.status}}", issue.Status,
			"{{issue.risk}}", issue.Risk,
			"{{issue.description}}", issue.Description,
			"{{issue.fix}}", issue.Fix,
			"{{issue.started_at}}", issue.StartedAt.Format(time.RFC3339),
		)
	} else {
		pairs = append(pairs,
			"{{issue.id}}", "",
			"{{issue.component}}", "",
			"{{issue.type}}", "",
			"{{issue.severity}}", "",
			"{{issue.status}}", "",
			"{{issue.risk}}", "",
			"{{issue.description}}", "",
			"{{issue.fix}}", "",
			"{{issue.started_at}}", "",
		)
	}

	// --- Action 변수 ---
	if action != nil {
		pairs = append(pairs,
			"{{action.id}}", action.ShortID,
			"{{action.type}}", action.Type,
			"{{action.target}}", action.Target,
			"{{action.status}}", action.Status,
			"{{action.result}}", action.Result,
			"{{action.error}}", action.Error,
		)
	} else {
		pairs = append(pairs,
			"{{action.id}}", "",
			"{{action.type}}", "",
			"{{action.target}}", "",
			"{{action.status}}", "",
			"{{action.result}}", "",
			"{{action.error}}", "",
		)
	}

	// --- Approval 변수 ---
	if approval != nil {
		pairs = append(pairs,
			"{{approval.id}}", approval.ShortID,
			"{{approval.expires_at}}", approval.ExpiresAt.Format(time.RFC3339),
		)
	} else {
		pairs = append(pairs,
			"{{approval.id}}", "",
			"{{approval.expires_at}}", "",
		)
	}

	return strings.NewReplacer(pairs...).Replace(body)
}
