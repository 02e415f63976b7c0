package db

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

// EnsureEmbeddingSchema - issue_embeddings 테이블 생성
//
// pgvector extension이 없는 DB에서는 생성에 실패할 수 있으며, 이 경우
// 유사 이슈 검색만 비활성화되고 나머지 기능은 정상 동작해야 한다.
func (db *Postgres) EnsureEmbeddingSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`
		CREATE TABLE IF NOT EXISTS issue_embeddings (
			id BIGSERIAL PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			summary TEXT NOT NULL,
			embedding vector(768),
			model TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// InsertEmbedding - 해결된 Issue 요약의 임베딩 저장
func (db *Postgres) InsertEmbedding(ctx context.Context, fingerprint, summary, embeddingModel string, vector []float32) (int64, error) {
	query := `
		INSERT INTO issue_embeddings (fingerprint, summary, embedding, model)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := db.Pool.QueryRow(ctx, query, fingerprint, summary, pgvector.NewVector(vector), embeddingModel).Scan(&id)
	return id, err
}

// SimilarSummaries - 벡터 유사도 기준 가까운 과거 이슈 요약 조회
func (db *Postgres) SimilarSummaries(ctx context.Context, vector []float32, limit int) ([]string, error) {
	query := `
		SELECT summary FROM issue_embeddings
		ORDER BY embedding <-> $1
		LIMIT $2`

	rows, err := db.Pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
