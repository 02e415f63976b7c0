// Gemini 기반 진단 오라클 + 임베딩 클라이언트
//
// 오라클 출력은 자유 텍스트일 수 있으므로:
//   - JSON 코드펜스 제거 후 파싱 시도
//   - 파싱 실패 시 risk_level을 비워서 반환 (classifier가 검증/폴백 담당)

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lab-sentinel/backend/internal/config"
	"github.com/lab-sentinel/backend/internal/model"
	"google.golang.org/genai"
)

type OracleClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

func NewOracleClient(cfg config.OracleConfig) (*OracleClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing AI_API_KEY")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	return &OracleClient{
		client:         client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}, nil
}

// Diagnose - Issue에 대한 원인/조치/위험 등급 진단 요청
func (c *OracleClient) Diagnose(ctx context.Context, issue *model.Issue, similar []string) (*model.Diagnosis, error) {
	prompt := buildDiagnosisPrompt(issue, similar)

	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call diagnosis model: %w", err)
	}

	raw := strings.TrimSpace(res.Text())
	if raw == "" {
		return nil, fmt.Errorf("empty diagnosis result")
	}

	diag := parseDiagnosis(raw)
	return diag, nil
}

// EmbedText - 텍스트 임베딩 (유사 과거 이슈 검색용)
func (c *OracleClient) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	res, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), nil)
	if err != nil {
		return nil, c.embeddingModel, err
	}
	if res == nil || len(res.Embeddings) == 0 || res.Embeddings[0] == nil {
		return nil, c.embeddingModel, fmt.Errorf("empty embedding result")
	}
	return res.Embeddings[0].Values, c.embeddingModel, nil
}

func buildDiagnosisPrompt(issue *model.Issue, similar []string) string {
	var b strings.Builder
	b.WriteString("You are a homelab SRE assistant. Diagnose the following infrastructure issue.\n\n")
	fmt.Fprintf(&b, "component: %s\n", issue.Component)
	fmt.Fprintf(&b, "issue_type: %s\n", issue.IssueType)
	fmt.Fprintf(&b, "severity: %s\n", issue.Severity)
	fmt.Fprintf(&b, "description: %s\n", issue.Description)
	for k, v := range issue.Metrics {
		fmt.Fprintf(&b, "metric %s: %s\n", k, v)
	}
	if len(similar) > 0 {
		b.WriteString("\nSimilar past incidents:\n")
		for _, s := range similar {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	b.WriteString("\nRespond with JSON only, no prose:\n")
	b.WriteString(`{"root_cause": "...", "remediation": "...", "risk_level": "low|medium|high", "reasoning": "..."}`)
	return b.String()
}

// parseDiagnosis - 오라클 응답 파싱 (malformed 필드는 빈 값으로 처리)
func parseDiagnosis(raw string) *model.Diagnosis {
	cleaned := stripCodeFence(raw)

	var diag model.Diagnosis
	if err := json.Unmarshal([]byte(cleaned), &diag); err != nil {
		// JSON이 아니면 전체를 reasoning으로 취급 (risk는 classifier가 폴백)
		return &model.Diagnosis{Reasoning: raw}
	}
	return &diag
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
