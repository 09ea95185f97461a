package config

import (
	"fmt"
	"os"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr             string
	Port                   string
	DatabasePath           string
	SessionSecret          string
	GinMode                string
	UploadDir              string
	UploadURLPath          string
	MediaBaseURL           string
	AdminEmail             string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := envOr("PORT", "8080")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return AppConfig{
		ListenAddr:             listenAddr,
		Port:                   port,
		DatabasePath:           envOr("DATABASE_PATH", "sitebuilder.db"),
		SessionSecret:          envOr("SESSION_SECRET", "sitebuilder-dev-secret"),
		GinMode:                envOr("GIN_MODE", "release"),
		UploadDir:              envOr("UPLOAD_DIR", "web/static/uploads"),
		UploadURLPath:          envOr("UPLOAD_URL_PATH", "/static/uploads"),
		MediaBaseURL:           strings.TrimRight(strings.TrimSpace(os.Getenv("MEDIA_BASE_URL")), "/"),
		AdminEmail:             strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		BootstrapAdminEmail:    strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL")),
		BootstrapAdminPassword: strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")),
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
