package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	appNameVar       = "APP_NAME"
	envVar           = "ENV"
	apiURLVar        = "TIPZED_API_URL"
	apiKeyVar        = "TIPZED_API_KEY"
	apiTimeoutVar    = "TIPZED_API_TIMEOUT"
	maxRequestsVar   = "TIPZED_MAX_REQUESTS"
	rateWindowVar    = "TIPZED_RATE_WINDOW_MS"
	sessionFileVar   = "TIPZED_SESSION_FILE"
	sessionSecretVar = "TIPZED_SESSION_SECRET"
)

// loadDotEnv pulls a local .env file into the process environment. A
// missing file is not an error; real environment variables win.
func loadDotEnv() {
	_ = godotenv.Load()
}

type EnvVars struct{}

var _ Config = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Tipzed")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "development")
}

func (EnvVars) GetBaseURL() string {
	return GetEnv(apiURLVar, "http://localhost:8000/api/v1")
}

func (EnvVars) GetAPIKey() string {
	return GetEnv(apiKeyVar, "")
}

// GetTimeout reads the per-request timeout in seconds.
func (EnvVars) GetTimeout() time.Duration {
	return time.Duration(getEnvInt(apiTimeoutVar, 15)) * time.Second
}

func (EnvVars) GetMaxRequests() int {
	return getEnvInt(maxRequestsVar, 5)
}

// GetRateWindow reads the rate-limit window in milliseconds.
func (EnvVars) GetRateWindow() time.Duration {
	return time.Duration(getEnvInt(rateWindowVar, 1000)) * time.Millisecond
}

func (EnvVars) GetSessionFile() string {
	if path := GetEnv(sessionFileVar, ""); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tipzed", "session")
}

func (EnvVars) GetSessionSecret() string {
	return GetEnv(sessionSecretVar, "")
}

func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
