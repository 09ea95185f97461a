package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/sitebuilder/internal/auth"
	"github.com/sitebuilder/internal/config"
	"github.com/sitebuilder/internal/db"
	"github.com/sitebuilder/internal/router"
	"github.com/sitebuilder/internal/service"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	if err := db.EnsureUser(db.DB, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, auth.RoleAdmin); err != nil {
		log.Fatalf("failed to bootstrap admin user: %v", err)
	}
	if err := service.NewSystemSettingService(db.DB).EnsureAdminEmail(context.Background(), cfg.AdminEmail); err != nil {
		log.Fatalf("failed to seed admin email: %v", err)
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(db.DB, cfg)
	log.Printf("[server] listening on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
