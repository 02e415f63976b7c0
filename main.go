package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	_ "github.com/lab-sentinel/backend/docs"
	"github.com/lab-sentinel/backend/internal/client"
	"github.com/lab-sentinel/backend/internal/config"
	"github.com/lab-sentinel/backend/internal/db"
	"github.com/lab-sentinel/backend/internal/handler"
	"github.com/lab-sentinel/backend/internal/service"
)

// @title Lab Sentinel API
// @version 1.0
// @description Alert lifecycle and risk-tiered remediation control plane for a homelab.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// .env 파일 로드 (없으면 무시)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	// Postgres 아카이브 (미설정이면 in-memory 전용으로 동작)
	var pg *db.Postgres
	if cfg.Postgres.Configured() {
		var err error
		pg, err = db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
	} else {
		log.Println("Postgres is not configured, running without durable archive")
	}

	// 외부 클라이언트
	slackClient := client.NewSlackClient(cfg.Slack)
	if !slackClient.IsConfigured() {
		log.Println("Slack is not configured, notifications are log-only")
	}

	var oracleClient *client.OracleClient
	if cfg.Oracle.APIKey != "" {
		var err error
		oracleClient, err = client.NewOracleClient(cfg.Oracle)
		if err != nil {
			log.Printf("Failed to initialise diagnosis oracle, falling back to static risk levels: %v", err)
		}
	} else {
		log.Println("AI_API_KEY is not set, using static risk levels")
	}

	var runnerClient *client.RunnerClient
	if cfg.Runner.BaseURL != "" {
		runnerClient = client.NewRunnerClient(cfg.Runner)
	} else {
		log.Println("RUNNER_URL is not set, remediation dispatch is disabled")
	}

	// 서비스 계층 (순환 참조는 setter로 연결)
	outcomeSvc := newOutcomeService(pg)

	var embeddingSvc *service.EmbeddingService
	if oracleClient != nil && pg != nil {
		embeddingSvc = service.NewEmbeddingService(oracleClient, pg)
		outcomeSvc.SetIndexer(embeddingSvc)
	}

	classifier := newClassifier(oracleClient, embeddingSvc, cfg.Oracle)
	engine := newEngine(classifier, runnerClient, slackClient, outcomeSvc, pg, cfg.Remediation)

	approvalSvc := newApprovalService(engine, slackClient, pg, cfg.Remediation)
	engine.SetApprovals(approvalSvc)

	issueSvc := service.NewIssueService(outcomeSvc)
	issueSvc.SetRemediator(engine)
	engine.SetIssueResolver(issueSvc)

	if slackClient.IsConfigured() {
		issueSvc.RegisterCallback(slackClient.SendIssueEvent)
	}

	trendSvc := service.NewTrendService(outcomeSvc, cfg.Trend.SpawnIssues)
	trendSvc.SetIssueReporter(issueSvc)

	// 재시작 후에도 쿨다운/레이트리밋/재발 통계가 유지되도록 이력 복원
	engine.Restore(ctx)
	outcomeSvc.Restore(ctx)

	// 백그라운드 스위퍼
	approvalSvc.StartSweeper(ctx, 10*time.Minute)
	trendSvc.StartSweeper(ctx, time.Duration(cfg.Trend.SweepMinutes)*time.Minute)

	// 운영자 인증 (JWT_SECRET + Postgres 필요)
	var authSvc *service.AuthService
	if cfg.Auth.JWTSecret != "" && pg != nil {
		var err error
		authSvc, err = service.NewAuthService(pg, cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialise auth: %v", err)
		}
		if err := authSvc.Bootstrap(ctx, cfg.Auth.BootstrapID, cfg.Auth.BootstrapPW); err != nil {
			log.Fatalf("Failed to bootstrap operator account: %v", err)
		}
	} else {
		log.Println("WARNING: operator API is running without authentication (set JWT_SECRET and Postgres to enable)")
	}

	router := buildRouter(cfg, issueSvc, trendSvc, engine, approvalSvc, outcomeSvc, authSvc)

	log.Printf("Starting server (port=%s)", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// nil 포인터가 non-nil 인터페이스로 승격되지 않도록 분기 생성자 사용
func newOutcomeService(pg *db.Postgres) *service.OutcomeService {
	if pg == nil {
		return service.NewOutcomeService(nil)
	}
	return service.NewOutcomeService(pg)
}

func newClassifier(oracle *client.OracleClient, embeddings *service.EmbeddingService, cfg config.OracleConfig) *service.RiskClassifier {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if oracle == nil {
		return service.NewRiskClassifier(nil, nil, timeout)
	}
	if embeddings == nil {
		return service.NewRiskClassifier(oracle, nil, timeout)
	}
	return service.NewRiskClassifier(oracle, embeddings, timeout)
}

func newEngine(classifier *service.RiskClassifier, runner *client.RunnerClient, slack *client.SlackClient,
	outcomes *service.OutcomeService, pg *db.Postgres, cfg config.RemediationConfig) *service.RemediationEngine {
	if runner == nil && pg == nil {
		return service.NewRemediationEngine(classifier, nil, slack, outcomes, nil, cfg.RequireApproval, cfg.MaxActionsPerHour)
	}
	if runner == nil {
		return service.NewRemediationEngine(classifier, nil, slack, outcomes, pg, cfg.RequireApproval, cfg.MaxActionsPerHour)
	}
	if pg == nil {
		return service.NewRemediationEngine(classifier, runner, slack, outcomes, nil, cfg.RequireApproval, cfg.MaxActionsPerHour)
	}
	return service.NewRemediationEngine(classifier, runner, slack, outcomes, pg, cfg.RequireApproval, cfg.MaxActionsPerHour)
}

func newApprovalService(engine *service.RemediationEngine, slack *client.SlackClient, pg *db.Postgres, cfg config.RemediationConfig) *service.ApprovalService {
	ttl := time.Duration(cfg.ApprovalTTLMinutes) * time.Minute
	if pg == nil {
		return service.NewApprovalService(engine, slack, nil, ttl)
	}
	return service.NewApprovalService(engine, slack, pg, ttl)
}

func buildRouter(cfg config.Config, issueSvc *service.IssueService, trendSvc *service.TrendService,
	engine *service.RemediationEngine, approvalSvc *service.ApprovalService,
	outcomeSvc *service.OutcomeService, authSvc *service.AuthService) *gin.Engine {

	router := gin.Default()

	if cfg.Server.CORSOrigins != "" {
		router.Use(handler.CORSMiddleware(splitOrigins(cfg.Server.CORSOrigins)))
	}

	ingestHandler := handler.NewIngestHandler(issueSvc, trendSvc)
	issueHandler := handler.NewIssueHandler(issueSvc)
	remediationHandler := handler.NewRemediationHandler(engine, approvalSvc, outcomeSvc)
	trendHandler := handler.NewTrendHandler(trendSvc)

	router.GET("/", handler.Root)
	router.GET("/healthz", handler.Healthz)
	router.GET("/openapi.json", handler.OpenAPIDoc)

	// 수신 그룹: Alertmanager/runner는 정적 토큰으로 인증
	ingest := router.Group("/api/v1")
	ingest.Use(handler.IngestTokenMiddleware(cfg.Auth.IngestToken))
	{
		ingest.POST("/alerts/webhook", ingestHandler.PostAlertWebhook)
		ingest.POST("/issues/report", ingestHandler.PostIssueReport)
		ingest.POST("/metrics/samples", ingestHandler.PostMetricSample)
	}

	// 운영자 그룹
	operator := router.Group("/api/v1")
	if authSvc != nil {
		operator.Use(handler.AuthMiddleware(authSvc))
	}
	{
		operator.GET("/issues", issueHandler.GetIssues)
		operator.GET("/issues/stats", issueHandler.GetIssueStats)
		operator.GET("/issues/:ref", issueHandler.GetIssue)
		operator.POST("/issues/:ref/ack", issueHandler.AcknowledgeIssue)
		operator.POST("/issues/:ref/silence", issueHandler.SilenceIssue)

		operator.GET("/actions", remediationHandler.GetActions)
		operator.GET("/approvals", remediationHandler.GetApprovals)
		operator.POST("/approvals/:ref/resolve", remediationHandler.ResolveApproval)
		operator.GET("/outcomes", remediationHandler.GetOutcomes)

		operator.GET("/trends/:component/:metric", trendHandler.GetTrend)
		operator.GET("/predictions", trendHandler.GetPredictions)
		operator.GET("/anomalies", trendHandler.GetAnomalies)
	}

	// 인증 그룹
	if authSvc != nil {
		authHandler := handler.NewAuthHandler(authSvc)
		auth := router.Group("/api/v1/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/me", handler.AuthMiddleware(authSvc), authHandler.Me)
		}
	}

	return router
}

func splitOrigins(origins string) []string {
	return strings.Split(origins, ",")
}
