// 유사 사례 검색 비즈니스 로직 정의
//
// 처리 흐름:
//  1. IndexIssue: 해소된 Issue의 요약을 임베딩해 pgvector에 적재
//  2. SimilarIncidents: 신규 Issue와 가까운 과거 사례 요약을 조회
//     - 진단 프롬프트의 참고 자료로 쓰여 리스크 판정 품질을 높임
//
// 임베딩 실패는 경고 로그만 남기고 파이프라인을 막지 않음.

package service

import (
	"context"
	"fmt"
	"log"

	"github.com/lab-sentinel/backend/internal/model"
)

// embeddingClient - 텍스트 임베딩 생성
type embeddingClient interface {
	EmbedText(ctx context.Context, text string) ([]float32, string, error)
}

// embeddingStore - 임베딩 적재/유사도 검색
type embeddingStore interface {
	InsertEmbedding(ctx context.Context, fingerprint, summary, embeddingModel string, vector []float32) (int64, error)
	SimilarSummaries(ctx context.Context, vector []float32, limit int) ([]string, error)
}

// EmbeddingService 구조체 정의
type EmbeddingService struct {
	client embeddingClient
	store  embeddingStore
}

// EmbeddingService 객체 생성
func NewEmbeddingService(client embeddingClient, store embeddingStore) *EmbeddingService {
	return &EmbeddingService{client: client, store: store}
}

// IndexIssue - 해소 Issue를 유사 사례 검색용으로 색인
func (s *EmbeddingService) IndexIssue(ctx context.Context, issue *model.Issue) {
	summary := issueSummary(issue)

	vector, embeddingModel, err := s.client.EmbedText(ctx, summary)
	if err != nil {
		log.Printf("Failed to embed resolved issue (fingerprint=%s): %v", issue.Fingerprint, err)
		return
	}

	if _, err := s.store.InsertEmbedding(ctx, issue.Fingerprint, summary, embeddingModel, vector); err != nil {
		log.Printf("Failed to store issue embedding (fingerprint=%s): %v", issue.Fingerprint, err)
	}
}

// SimilarIncidents - 신규 Issue와 유사한 과거 사례 요약 조회
func (s *EmbeddingService) SimilarIncidents(ctx context.Context, issue *model.Issue) []string {
	vector, _, err := s.client.EmbedText(ctx, issueSummary(issue))
	if err != nil {
		log.Printf("Failed to embed issue for similarity search (fingerprint=%s): %v", issue.Fingerprint, err)
		return nil
	}

	summaries, err := s.store.SimilarSummaries(ctx, vector, 3)
	if err != nil {
		log.Printf("Failed to query similar incidents (fingerprint=%s): %v", issue.Fingerprint, err)
		return nil
	}
	return summaries
}

func issueSummary(issue *model.Issue) string {
	summary := fmt.Sprintf("[%s] %s/%s: %s", issue.Severity, issue.Component, issue.IssueType, issue.Description)
	if issue.Diagnosis != nil && issue.Diagnosis.RootCause != "" {
		summary += " | root cause: " + issue.Diagnosis.RootCause
	}
	return summary
}
