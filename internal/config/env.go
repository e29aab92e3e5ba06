// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DeployEnv tags the deployment environment the process runs in.
type DeployEnv string

const (
	EnvLocal   DeployEnv = "local"
	EnvDev     DeployEnv = "dev"
	EnvStaging DeployEnv = "staging"
	EnvProd    DeployEnv = "prod"
)

// IsValid reports whether e is a known deployment environment.
func (e DeployEnv) IsValid() bool {
	switch e {
	case EnvLocal, EnvDev, EnvStaging, EnvProd:
		return true
	}
	return false
}

const (
	defaultSearchIndexPath   = "./data/search_index"
	defaultPhotographsBucket = "cyhdev-photographs"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Database: either a full URL or discrete parts.
	DBURL      string
	DBHost     string
	DBPort     int
	DBUsername string
	DBPassword string
	DBName     string

	// SMTP (AWS SES).
	SESSMTPURL   string
	SESUsername  string
	SESAccessKey string

	// Object storage.
	ImageUploadKey    string
	ImageSecretKey    string
	PhotographsBucket string

	// Runtime identity.
	AppNameVersion  string
	CurrentEnv      DeployEnv
	SearchIndexPath string
	RunningOnAWS    bool
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Outside AWS (IS_AWS unset) a .env file in the working directory is loaded
// first; missing .env is not an error.
func LoadEnvConfig() (*EnvConfig, error) {
	_, onAWS := os.LookupEnv("IS_AWS")
	if !onAWS {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}

	cfg := &EnvConfig{RunningOnAWS: onAWS}
	var errs []string

	// --- Database ---
	cfg.DBURL = strings.TrimSpace(envStr("DB_URL", ""))
	cfg.DBHost = strings.TrimSpace(envStr("DB_HOST", ""))
	cfg.DBPort = envInt("DB_PORT", 0, &errs)
	cfg.DBUsername = envStr("DB_USERNAME", "")
	cfg.DBPassword = envStr("DB_PASSWORD", "")
	cfg.DBName = envStr("DB_NAME", "")
	if cfg.DBURL == "" && cfg.DBHost == "" {
		errs = append(errs, "either DB_URL or DB_HOST must be set")
	}

	// --- SMTP ---
	cfg.SESSMTPURL = envStr("AWS_SES_SMTP_URL", "")
	cfg.SESUsername = envStr("AWS_SES_USERNAME", "")
	cfg.SESAccessKey = envStr("AWS_SES_ACCESS_KEY", "")

	// --- Object storage ---
	cfg.ImageUploadKey = envStr("AWS_IMAGE_UPLOAD_KEY", "")
	cfg.ImageSecretKey = envStr("AWS_IMAGE_SECRET_KEY", "")
	cfg.PhotographsBucket = envStr("AWS_PHOTOGRAPHS_BUCKET", defaultPhotographsBucket)

	// --- Runtime identity ---
	cfg.AppNameVersion = strings.TrimSpace(envStr("APP_NAME_VERSION", "cyhdev"))
	cfg.CurrentEnv = DeployEnv(envStr("CURR_ENV", string(EnvProd)))
	cfg.SearchIndexPath = envStr("SEARCH_INDEX_PATH", defaultSearchIndexPath)

	// --- Validation ---
	if !cfg.CurrentEnv.IsValid() {
		errs = append(errs, fmt.Sprintf("CURR_ENV: invalid value %q (allowed: local, dev, staging, prod)", cfg.CurrentEnv))
	}
	if cfg.DBPort != 0 {
		validatePort("DB_PORT", cfg.DBPort, &errs)
	}
	if cfg.AppNameVersion == "" {
		errs = append(errs, "APP_NAME_VERSION must not be empty")
	}
	if cfg.SearchIndexPath == "" {
		errs = append(errs, "SEARCH_INDEX_PATH must not be empty")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}
