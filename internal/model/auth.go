package model

import "time"

type AuthUser struct {
	ID      int64
	LoginID string
}

// OperatorAccount - 운영자 계정 (operator API 인증용)
type OperatorAccount struct {
	ID           int64
	LoginID      string
	PasswordHash string
	CreatedAt    time.Time
}
