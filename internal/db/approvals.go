package db

import (
	"context"

	"github.com/lab-sentinel/backend/internal/model"
)

// EnsureApprovalSchema - pending_approvals 테이블 생성
func (db *Postgres) EnsureApprovalSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS pending_approvals (
			approval_id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL DEFAULT '',
			component TEXT NOT NULL DEFAULT '',
			issue_type TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			requested_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`

	_, err := db.Pool.Exec(ctx, query)
	return err
}

// SaveApproval - 승인 대기 항목 upsert
func (db *Postgres) SaveApproval(ctx context.Context, req *model.ApprovalRequest) error {
	query := `
		INSERT INTO pending_approvals (
			approval_id, fingerprint, component, issue_type, summary, requested_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (approval_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			requested_at = EXCLUDED.requested_at,
			expires_at = EXCLUDED.expires_at
	`

	_, err := db.Pool.Exec(ctx, query,
		req.ApprovalID, req.Fingerprint, req.Component, req.IssueType,
		req.Summary, req.RequestedAt, req.ExpiresAt,
	)
	return err
}

// DeleteApproval - approve/reject/expire 시 항목 제거
func (db *Postgres) DeleteApproval(ctx context.Context, approvalID string) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM pending_approvals WHERE approval_id = $1`, approvalID)
	return err
}
