package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 必須の環境変数はなく、未設定のソースは空の結果を返すだけになる。
type Config struct {
	// GitHub
	GitHubToken            string
	GitHubAPIURL           string
	GitHubSearchRatePerMin int

	// Jira（カンマ区切りの生の値。分割は利用側で行う）
	JiraDomains     string
	JiraEmail       string
	JiraAPIToken    string
	JiraStatuses    string
	JiraProjectKeys string

	// Google
	GoogleCredentialsPath string
	GoogleTokenPath       string

	// Database（空の場合はトークンをファイルに保存する）
	DatabaseURL string

	// Demo
	DemoMode bool

	// Upstream
	UpstreamTimeout time.Duration
	// AggregationTimeout は1リクエストあたりの集約処理全体の上限。
	AggregationTimeout time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// GoogleRedirectURL はOAuthコールバックの絶対URLを返す。
func (c *Config) GoogleRedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/v1/google/callback"
}

// LoadDotEnv は.envファイルがあれば環境変数に取り込む。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// BASE_URLが絶対URLでない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.GitHubToken = getEnvString("GITHUB_TOKEN", "")
	cfg.GitHubAPIURL = getEnvString("GITHUB_API_URL", "https://api.github.com")
	cfg.GitHubSearchRatePerMin = getEnvInt("GITHUB_SEARCH_RATE_PER_MIN", 30)

	cfg.JiraDomains = getEnvString("JIRA_DOMAINS", getEnvString("JIRA_DOMAIN", ""))
	cfg.JiraEmail = getEnvString("JIRA_EMAIL", "")
	cfg.JiraAPIToken = getEnvString("JIRA_API_TOKEN", "")
	cfg.JiraStatuses = getEnvString("JIRA_TASK_STATUS_ENABLED", "In Progress")
	cfg.JiraProjectKeys = getEnvString("JIRA_PROJECT_KEYS", "")

	cfg.GoogleCredentialsPath = getEnvString("GOOGLE_CREDENTIALS_PATH", "/app/credentials.json")
	cfg.GoogleTokenPath = getEnvString("GOOGLE_TOKEN_PATH", "/app/token.json")

	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.DemoMode = getEnvBool("DEMO_MODE", false)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 5*time.Second)
	cfg.AggregationTimeout = getEnvDuration("AGGREGATION_TIMEOUT", 20*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8001")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8001")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("BASE_URL must be an absolute URL: %q", cfg.BaseURL)
	}

	return cfg, nil
}

// getEnvString は環境変数を読み、前後の空白と囲み引用符を除去する。
func getEnvString(key, defaultVal string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	if v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := getEnvString(key, "")
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := getEnvString(key, "")
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := getEnvString(key, "")
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
