package db

import (
	"context"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

// EnsureIssueSchema - issues 테이블 생성
//
// occurrence 단위 이력: 같은 fingerprint가 재발화/재해소되면 행이 새로
// 추가됨. 재발 통계가 과거 발생 시각 전체를 필요로 하므로 upsert 금지.
func (db *Postgres) EnsureIssueSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS issues (
			id BIGSERIAL PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			component TEXT NOT NULL DEFAULT '',
			issue_type TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT 'warning',
			status TEXT NOT NULL DEFAULT 'firing',
			risk_level TEXT NOT NULL DEFAULT '',
			suggested_fix TEXT NOT NULL DEFAULT '',
			metrics JSONB NOT NULL DEFAULT '{}',
			started_at TIMESTAMPTZ,
			resolved_at TIMESTAMPTZ,
			acknowledged_at TIMESTAMPTZ,
			acknowledged_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS issues_fingerprint_idx ON issues(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS issues_component_idx ON issues(component)`,
		`CREATE INDEX IF NOT EXISTS issues_status_idx ON issues(status)`,
		`CREATE INDEX IF NOT EXISTS issues_started_at_idx ON issues(started_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// SaveIssue - Issue occurrence를 issues 테이블에 추가
func (db *Postgres) SaveIssue(ctx context.Context, issue *model.Issue) error {
	query := `
		INSERT INTO issues (
			fingerprint, source, component, issue_type, description, severity,
			status, risk_level, suggested_fix, metrics, started_at, resolved_at,
			acknowledged_at, acknowledged_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
	`

	_, err := db.Pool.Exec(ctx, query,
		issue.Fingerprint,
		issue.Source,
		issue.Component,
		issue.IssueType,
		issue.Description,
		string(issue.Severity),
		string(issue.Status),
		string(issue.RiskLevel),
		issue.SuggestedFix,
		issue.Metrics,
		issue.StartedAt,
		issue.ResolvedAt,
		issue.AcknowledgedAt,
		issue.AcknowledgedBy,
	)
	return err
}

// RecentResolvedIssues - 최근 해결된 Issue 목록 조회 (outcome 리포트용)
func (db *Postgres) RecentResolvedIssues(ctx context.Context, limit int) ([]*model.Issue, error) {
	query := `
		SELECT fingerprint, source, component, issue_type, description, severity,
		       status, risk_level, suggested_fix, started_at, resolved_at
		FROM issues
		WHERE status = 'resolved'
		ORDER BY resolved_at DESC
		LIMIT $1`

	rows, err := db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*model.Issue
	for rows.Next() {
		var issue model.Issue
		var severity, status, risk string
		if err := rows.Scan(&issue.Fingerprint, &issue.Source, &issue.Component,
			&issue.IssueType, &issue.Description, &severity, &status, &risk,
			&issue.SuggestedFix, &issue.StartedAt, &issue.ResolvedAt); err != nil {
			return nil, err
		}
		issue.Severity = model.Severity(severity)
		issue.Status = model.IssueStatus(status)
		issue.RiskLevel = model.RiskLevel(risk)
		list = append(list, &issue)
	}

	if list == nil {
		list = []*model.Issue{}
	}
	return list, nil
}

// ComponentFailureTimes - 최근 장애 발생 시각 조회 (recurring-failure 통계용)
func (db *Postgres) ComponentFailureTimes(ctx context.Context, component string, since time.Time) ([]time.Time, error) {
	query := `
		SELECT started_at FROM issues
		WHERE component = $1 AND started_at >= $2
		ORDER BY started_at ASC`

	rows, err := db.Pool.Query(ctx, query, component, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, nil
}
