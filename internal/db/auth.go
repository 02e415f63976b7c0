package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/lab-sentinel/backend/internal/model"
)

var ErrAccountNotFound = errors.New("account not found")

// EnsureAuthSchema - operator_accounts 테이블 생성
func (db *Postgres) EnsureAuthSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS operator_accounts (
			id BIGSERIAL PRIMARY KEY,
			login_id TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	_, err := db.Pool.Exec(ctx, query)
	return err
}

// GetOperatorByLoginID - 운영자 계정 조회
func (db *Postgres) GetOperatorByLoginID(ctx context.Context, loginID string) (*model.OperatorAccount, error) {
	query := `
		SELECT id, login_id, password_hash, created_at
		FROM operator_accounts
		WHERE login_id = $1`

	var account model.OperatorAccount
	err := db.Pool.QueryRow(ctx, query, loginID).Scan(
		&account.ID, &account.LoginID, &account.PasswordHash, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateOperator - 운영자 계정 생성 (이미 있으면 no-op)
func (db *Postgres) CreateOperator(ctx context.Context, loginID, passwordHash string) error {
	query := `
		INSERT INTO operator_accounts (login_id, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (login_id) DO NOTHING`

	_, err := db.Pool.Exec(ctx, query, loginID, passwordHash)
	return err
}
