package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. The SMTP and R2 blocks are optional:
// when absent, the corresponding collaborator is simply not wired.
type Config struct {
	DatabaseURL string
	SMTP        *SMTPConfig
	R2          *R2Config
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// R2Config points at the Cloudflare R2 bucket used for standings exports.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// Load reads configuration from the environment, loading a .env file first
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	cfg := &Config{DatabaseURL: dbURL}

	if host := os.Getenv("SMTP_HOST"); host != "" {
		portStr := os.Getenv("SMTP_PORT")
		if portStr == "" {
			portStr = "587"
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		smtp := &SMTPConfig{
			Host:     host,
			Port:     port,
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
		}
		if smtp.From == "" {
			return nil, fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
		}
		cfg.SMTP = smtp
	}

	if account := os.Getenv("R2_ACCOUNT_ID"); account != "" {
		r2 := &R2Config{
			AccountID:       account,
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		}
		if r2.AccessKeyID == "" || r2.SecretAccessKey == "" || r2.BucketName == "" {
			return nil, fmt.Errorf("incomplete R2 configuration: access key, secret and bucket are required")
		}
		cfg.R2 = r2
	}

	return cfg, nil
}
