package config

import (
	"os"
	"strconv"
)

type Config struct {
	Server      ServerConfig
	Auth        AuthConfig
	Slack       SlackConfig
	Oracle      OracleConfig
	Runner      RunnerConfig
	Remediation RemediationConfig
	Trend       TrendConfig
	Postgres    PostgresConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
}

type AuthConfig struct {
	JWTSecret     string
	AccessTTLMin  int
	RefreshTTLMin int
	IngestToken   string
	BootstrapID   string
	BootstrapPW   string
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

type OracleConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	TimeoutSeconds int
}

type RunnerConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

type RemediationConfig struct {
	RequireApproval    bool
	MaxActionsPerHour  int
	ApprovalTTLMinutes int
}

type TrendConfig struct {
	SpawnIssues  bool
	SweepMinutes int
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:        getenv("PORT", "8080"),
			CORSOrigins: os.Getenv("CORS_ORIGINS"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			AccessTTLMin:  getint("JWT_ACCESS_TTL_MIN", 15),
			RefreshTTLMin: getint("JWT_REFRESH_TTL_MIN", 60*24*14),
			IngestToken:   os.Getenv("INGEST_TOKEN"),
			BootstrapID:   os.Getenv("OPERATOR_LOGIN_ID"),
			BootstrapPW:   os.Getenv("OPERATOR_PASSWORD"),
		},
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Oracle: OracleConfig{
			APIKey:         os.Getenv("AI_API_KEY"),
			Model:          getenv("AI_MODEL", "gemini-2.0-flash"),
			EmbeddingModel: getenv("AI_EMBEDDING_MODEL", "text-embedding-004"),
			TimeoutSeconds: getint("AI_TIMEOUT_SECONDS", 30),
		},
		Runner: RunnerConfig{
			BaseURL:        os.Getenv("RUNNER_URL"),
			Token:          os.Getenv("RUNNER_TOKEN"),
			TimeoutSeconds: getint("RUNNER_TIMEOUT_SECONDS", 120),
		},
		Remediation: RemediationConfig{
			RequireApproval:    getbool("REQUIRE_APPROVAL", false),
			MaxActionsPerHour:  getint("MAX_ACTIONS_PER_HOUR", 10),
			ApprovalTTLMinutes: getint("APPROVAL_TTL_MINUTES", 60),
		},
		Trend: TrendConfig{
			SpawnIssues:  getbool("TREND_SPAWN_ISSUES", true),
			SweepMinutes: getint("TREND_SWEEP_MINUTES", 15),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
	}
}

// Configured - 아카이브 사용 여부 (미설정이면 in-memory로만 동작)
func (c PostgresConfig) Configured() bool {
	return c.DatabaseURL != "" || (c.User != "" && c.Database != "")
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getint(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
