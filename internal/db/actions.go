// RemediationAction 히스토리 저장
//
// 쿨다운/레이트리밋은 액션 히스토리에서 계산되므로, 프로세스 재시작 후에도
// 안전 한도가 유지되도록 액션은 write-through로 기록하고 기동 시 복원한다.

package db

import (
	"context"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

// EnsureActionSchema - remediation_actions 테이블 생성
func (db *Postgres) EnsureActionSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS remediation_actions (
			action_id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL DEFAULT '',
			target TEXT NOT NULL DEFAULT '',
			action_type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			cooldown_minutes INT NOT NULL DEFAULT 0,
			result TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			executed_at TIMESTAMPTZ
		)
		`,
		`CREATE INDEX IF NOT EXISTS actions_target_type_idx ON remediation_actions(target, action_type)`,
		`CREATE INDEX IF NOT EXISTS actions_created_at_idx ON remediation_actions(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// SaveAction - 액션 레코드 upsert (상태 전이마다 호출)
func (db *Postgres) SaveAction(ctx context.Context, action *model.RemediationAction) error {
	query := `
		INSERT INTO remediation_actions (
			action_id, fingerprint, target, action_type, status,
			cooldown_minutes, result, error, created_at, executed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (action_id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			executed_at = EXCLUDED.executed_at
	`

	_, err := db.Pool.Exec(ctx, query,
		action.ActionID,
		action.Fingerprint,
		action.Target,
		string(action.Type),
		string(action.Status),
		action.CooldownMinutes,
		action.Result,
		action.Error,
		action.CreatedAt,
		action.ExecutedAt,
	)
	return err
}

// LoadActionsSince - 기동 시 안전 한도 복원용 액션 히스토리 조회
func (db *Postgres) LoadActionsSince(ctx context.Context, since time.Time) ([]*model.RemediationAction, error) {
	query := `
		SELECT action_id, fingerprint, target, action_type, status,
		       cooldown_minutes, result, error, created_at, executed_at
		FROM remediation_actions
		WHERE created_at >= $1
		ORDER BY created_at ASC`

	rows, err := db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*model.RemediationAction
	for rows.Next() {
		var a model.RemediationAction
		var actionType, status string
		if err := rows.Scan(&a.ActionID, &a.Fingerprint, &a.Target, &actionType,
			&status, &a.CooldownMinutes, &a.Result, &a.Error, &a.CreatedAt, &a.ExecutedAt); err != nil {
			return nil, err
		}
		a.Type = model.RemediationType(actionType)
		a.Status = model.ActionStatus(status)
		list = append(list, &a)
	}
	return list, nil
}
