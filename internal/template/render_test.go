package template

import (
	"testing"
	"time"
)

func TestRenderBody(t *testing.T) {
	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	issue := &IssueData{
		ShortID:     "abcdef01",
		Component:   "nginx",
		IssueType:   "container_stopped",
		Severity:    "warning",
		Risk:        "low",
		Description: "container exited",
		Fix:         "restart it",
		StartedAt:   started,
	}
	action := &ActionData{
		ShortID: "a1b2c3d4",
		Type:    "container_restart",
		Target:  "container:nginx",
		Status:  "success",
		Result:  "restarted",
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "issue-variables",
			body: "[{{issue.severity}}] {{issue.component}}: {{issue.description}}",
			want: "[warning] nginx: container exited",
		},
		{
			name: "action-variables",
			body: "{{action.type}} on {{action.target}} -> {{action.status}}",
			want: "container_restart on container:nginx -> success",
		},
		{
			name: "timestamp-rfc3339",
			body: "since {{issue.started_at}}",
			want: "since 2026-08-01T12:00:00Z",
		},
		{
			name: "unknown-variable-left-as-is",
			body: "{{issue.component}} {{issue.nope}}",
			want: "nginx {{issue.nope}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderBody(tt.body, issue, action, nil); got != tt.want {
				t.Fatalf("RenderBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderBodyNilSections(t *testing.T) {
	body := "issue={{issue.id}} action={{action.id}} approval={{approval.id}}"
	if got := RenderBody(body, nil, nil, nil); got != "issue= action= approval=" {
		t.Fatalf("RenderBody() with nil sections = %q", got)
	}
}
