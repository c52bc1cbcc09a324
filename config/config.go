package config

import (
	"os"
)

// Config holds all configuration for the road report service. Values are
// compiled-in defaults overridden by environment variables.
type Config struct {
	// Server
	Host string
	Port string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// LINE platform
	LineChannelAccessToken string
	LineLoginChannelID     string
	LiffID                 string
	LineVerifyURL          string
	LineProfileURL         string
	LinePushURL            string

	// SendGrid configuration
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	// Base URL of the admin dashboards, used in notification emails
	AdminBaseURL string

	// Photo object store
	PhotoDir     string
	PhotoBaseURL string

	// RabbitMQ (optional, analysis pipeline)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Auth Service gating the admin API
	AuthServiceURL string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{}

	cfg.Host = getEnv("HOST", "0.0.0.0")
	cfg.Port = getEnv("PORT", "8080")

	// Database configuration
	cfg.DBHost = getEnv("DB_HOST", "localhost")
	cfg.DBPort = getEnv("DB_PORT", "3306")
	cfg.DBUser = getEnv("DB_USER", "server")
	cfg.DBPassword = getEnv("DB_PASSWORD", "secret")
	cfg.DBName = getEnv("DB_NAME", "roadreport")

	// LINE platform
	cfg.LineChannelAccessToken = getEnv("LINE_CHANNEL_ACCESS_TOKEN", "")
	cfg.LineLoginChannelID = getEnv("LINE_LOGIN_CHANNEL_ID", "")
	cfg.LiffID = getEnv("LIFF_ID", "")
	cfg.LineVerifyURL = getEnv("LINE_VERIFY_TOKEN_URL", "https://api.line.me/oauth2/v2.1/verify")
	cfg.LineProfileURL = getEnv("LINE_PROFILE_API_URL", "https://api.line.me/v2/profile")
	cfg.LinePushURL = getEnv("LINE_MESSAGING_API_URL", "https://api.line.me/v2/bot/message/push")

	// SendGrid configuration
	cfg.SendGridAPIKey = getEnv("SENDGRID_API_KEY", "")
	cfg.SendGridFromName = getEnv("SENDGRID_FROM_NAME", "Road Report App")
	cfg.SendGridFromEmail = getEnv("SENDGRID_FROM_EMAIL", "noreply@roadreport.example")

	cfg.AdminBaseURL = getEnv("ADMIN_BASE_URL", "http://localhost:8080")

	// Photo object store
	cfg.PhotoDir = getEnv("PHOTO_DIR", "./photos")
	cfg.PhotoBaseURL = getEnv("PHOTO_BASE_URL", "http://localhost:8080/photos")

	// RabbitMQ
	cfg.AMQPURL = getEnv("AMQP_URL", "")
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", "report_analysis")
	cfg.AMQPRoutingKey = getEnv("AMQP_ROUTING_KEY", "report.new")

	cfg.AuthServiceURL = getEnv("AUTH_SERVICE_URL", "http://auth-service:8080")

	return cfg
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
