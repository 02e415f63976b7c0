// 노드 runner와 HTTP 통신하는 클라이언트 정의
//
// runner는 각 호스트에서 실제 조치(컨테이너 재시작, 디스크 정리 등)를 수행하는
// 에이전트. 조치 유형별로 엔드포인트가 하나씩 존재.
//
// runner에 전달하는 데이터:
//   - target: 조치 대상 (예: "container:nginx")
//   - command: custom 조치일 때만 사용

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lab-sentinel/backend/internal/config"
)

// RunnerClient 구조체 정의
type RunnerClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// RunnerActionRequest 구조체 정의
type RunnerActionRequest struct {
	Target  string `json:"target"`
	Command string `json:"command,omitempty"`
}

// RunnerActionResponse 구조체 정의
type RunnerActionResponse struct {
	Status  string `json:"status"` // ok | error
	Message string `json:"message"`
}

// RunnerClient 객체 생성
func NewRunnerClient(cfg config.RunnerConfig) *RunnerClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &RunnerClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *RunnerClient) RestartService(ctx context.Context, target string) (string, error) {
	return c.post(ctx, "/api/v1/actions/service-restart", RunnerActionRequest{Target: target})
}

func (c *RunnerClient) RestartContainer(ctx context.Context, target string) (string, error) {
	return c.post(ctx, "/api/v1/actions/container-restart", RunnerActionRequest{Target: target})
}

func (c *RunnerClient) CleanupDisk(ctx context.Context, target string) (string, error) {
	return c.post(ctx, "/api/v1/actions/disk-cleanup", RunnerActionRequest{Target: target})
}

func (c *RunnerClient) RotateLogs(ctx context.Context, target string) (string, error) {
	return c.post(ctx, "/api/v1/actions/log-rotation", RunnerActionRequest{Target: target})
}

func (c *RunnerClient) ScaleResource(ctx context.Context, target string) (string, error) {
	return c.post(ctx, "/api/v1/actions/resource-scale", RunnerActionRequest{Target: target})
}

func (c *RunnerClient) RunCustom(ctx context.Context, target, command string) (string, error) {
	return c.post(ctx, "/api/v1/actions/custom", RunnerActionRequest{Target: target, Command: command})
}

// runner API 호출 공통 처리
func (c *RunnerClient) post(ctx context.Context, path string, reqBody RunnerActionRequest) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("runner URL not configured")
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call runner: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read runner response: %w", err)
	}

	var actionResp RunnerActionResponse
	if err := json.Unmarshal(body, &actionResp); err != nil {
		return "", fmt.Errorf("failed to parse runner response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || actionResp.Status != "ok" {
		return "", fmt.Errorf("runner action failed: %s", actionResp.Message)
	}

	return actionResp.Message, nil
}
