// Slack 알림 메시지 관련 메서드 정의
//
// firing 알림과 후속 메시지를 다르게 처리:
//   - firing: 새 메시지 전송 후 thread_ts 저장
//   - resolved/조치 결과/승인 응답: 기존 쓰레드에 답글로 전송

package client

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
	tmpl "github.com/lab-sentinel/backend/internal/template"
)

const (
	issueBodyTemplate    = "{{issue.description}}"
	approvalBodyTemplate = "조치 실행에 승인이 필요합니다.\n" +
		"승인 ID: `{{approval.id}}` (만료: {{approval.expires_at}})\n" +
		"제안된 조치: {{issue.fix}}\n" +
		"`POST /api/v1/approvals/{{approval.id}}/resolve` 로 승인/거절할 수 있습니다."
	outcomeBodyTemplate = "조치 {{action.type}} → {{action.target}}: {{action.status}}\n{{action.result}}{{action.error}}"
)

// Notify - 단순 텍스트 알림 (fire-and-forget)
func (c *SlackClient) Notify(text string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}
	msg := SlackMessage{Channel: c.channelID, Text: text}
	_, err := c.send(msg)
	return err
}

// SendIssueEvent - Issue 생성/해결 알림 전송
func (c *SlackClient) SendIssueEvent(issue *model.Issue) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	resolved := issue.Status == model.IssueStatusResolved
	color := c.getColorByIssue(issue, resolved)
	emoji := "🔥"
	if resolved {
		emoji = "✅"
	}

	title := fmt.Sprintf("%s [%s] %s (%s)", emoji, issue.Severity, issue.IssueType, issue.ShortID())
	data := tmpl.IssueDataFrom(issue)

	body := tmpl.RenderBody(issueBodyTemplate, &data, nil, nil)
	if issue.Diagnosis != nil && issue.Diagnosis.Reasoning != "" {
		// 오라클 출력은 markdown이라 Slack 포맷으로 변환
		body += "\n" + toSlackMarkdown(issue.Diagnosis.Reasoning)
	}

	fields := []SlackField{
		{Title: "Component", Value: issue.Component, Short: true},
		{Title: "Severity", Value: string(issue.Severity), Short: true},
		{Title: "Status", Value: string(issue.Status), Short: true},
		{Title: "Started", Value: issue.StartedAt.Format(time.RFC3339), Short: true},
	}
	if issue.RiskLevel != "" {
		fields = append(fields, SlackField{Title: "Risk", Value: string(issue.RiskLevel), Short: true})
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color:  color,
				Title:  title,
				Text:   body,
				Fields: fields,
				Footer: "lab-sentinel",
				Ts:     time.Now().Unix(),
			},
		},
	}

	// resolved 알림: 기존 쓰레드로 전송
	if resolved {
		if threadTS, ok := c.GetThreadTS(issue.Fingerprint); ok {
			msg.ThreadTS = threadTS
		}
	}

	resp, err := c.send(msg)
	if err != nil {
		return err
	}

	if !resolved && resp.TS != "" {
		c.StoreThreadTS(issue.Fingerprint, resp.TS)
	}
	if resolved {
		c.DeleteThreadTS(issue.Fingerprint)
	}
	return nil
}

// RequestApproval - 승인 요청 프롬프트 전송
func (c *SlackClient) RequestApproval(issue *model.Issue, approvalID string, expiresAt time.Time) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	issueData := tmpl.IssueDataFrom(issue)
	approvalData := tmpl.ApprovalData{ShortID: model.ShortID(approvalID), ExpiresAt: expiresAt}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color: "#ffc107",
				Title: fmt.Sprintf("🙋 승인 필요 [%s] %s/%s", issue.RiskLevel, issue.Component, issue.IssueType),
				Text:  tmpl.RenderBody(approvalBodyTemplate, &issueData, nil, &approvalData),
				Ts:    time.Now().Unix(),
			},
		},
	}
	if threadTS, ok := c.GetThreadTS(issue.Fingerprint); ok {
		msg.ThreadTS = threadTS
	}

	_, err := c.send(msg)
	return err
}

// SendActionOutcome - 조치 실행 결과 전송
func (c *SlackClient) SendActionOutcome(issue *model.Issue, action *model.RemediationAction) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	color := "#36a64f"
	if action.Status == model.ActionStatusFailed {
		color = "#dc3545"
	}

	issueData := tmpl.IssueDataFrom(issue)
	actionData := tmpl.ActionDataFrom(action)

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color: color,
				Title: fmt.Sprintf("🔧 조치 결과: %s", action.Status),
				Text:  tmpl.RenderBody(outcomeBodyTemplate, &issueData, &actionData, nil),
				Ts:    time.Now().Unix(),
			},
		},
	}
	if threadTS, ok := c.GetThreadTS(issue.Fingerprint); ok {
		msg.ThreadTS = threadTS
	}

	_, err := c.send(msg)
	return err
}

var (
	codeBlockRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]*`")
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	boldRe       = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// toSlackMarkdown - 일반 markdown을 Slack mrkdwn으로 변환
//
// 코드 블록/인라인 코드 안의 내용은 변환에서 보호.
func toSlackMarkdown(text string) string {
	var protected []string
	protect := func(s string) string {
		protected = append(protected, s)
		return fmt.Sprintf("\x00%d\x00", len(protected)-1)
	}

	text = codeBlockRe.ReplaceAllStringFunc(text, protect)
	text = inlineCodeRe.ReplaceAllStringFunc(text, protect)
	text = headingRe.ReplaceAllString(text, "*$1*")
	text = boldRe.ReplaceAllString(text, "*$1*")

	for i, s := range protected {
		text = strings.Replace(text, fmt.Sprintf("\x00%d\x00", i), s, 1)
	}
	return text
}

func (c *SlackClient) getColorByIssue(issue *model.Issue, resolved bool) string {
	if resolved {
		return "#36a64f" // green
	}
	switch issue.Severity {
	case model.SeverityCritical:
		return "#dc3545" // red
	case model.SeverityWarning:
		return "#ffc107" // yellow
	default:
		return "#17a2b8" // blue
	}
}
