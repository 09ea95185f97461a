package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sitebuilder/internal/config"
	"github.com/sitebuilder/internal/handler"
	"gorm.io/gorm"
)

const sessionName = "sitebuilder_session"

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(gdb *gorm.DB, cfg config.AppConfig) *gin.Engine {
	api := handler.NewAPI(gdb, cfg.UploadDir, cfg.UploadURLPath, cfg.MediaBaseURL)
	return setupRouter(api, cfg)
}

func setupRouter(api *handler.API, cfg config.AppConfig) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, MaxAge: 7 * 24 * 3600})
	r.Use(sessions.Sessions(sessionName, store))

	// 上传文件
	if cfg.UploadDir != "" && cfg.UploadURLPath != "" {
		r.Static(cfg.UploadURLPath, cfg.UploadDir)
	}

	r.GET("/healthz", api.HealthCheck)

	// 页面读取对所有人开放，未发布页面仅管理员可见
	r.GET("/pages", api.ListPages)
	r.GET("/pages/:slug", api.GetPage)
	r.GET("/pages/:slug/components/:component", api.GetPageComponent)

	pages := r.Group("/pages")
	pages.Use(api.AdminRequired())
	{
		pages.POST("", api.CreatePage)
		pages.PATCH("/:slug/content", api.UpdatePageContent)
		pages.PUT("/:slug", api.UpsertPageComponents)
		pages.PATCH("/:slug", api.UpdatePageSettings)
	}

	admin := r.Group("/admin")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)
		admin.GET("/api/me", api.CurrentUser)

		// 需要管理员权限的后台接口
		protected := admin.Group("/api")
		protected.Use(api.AdminRequired())
		{
			protected.GET("/settings", api.GetSystemSettings)
			protected.PUT("/settings", api.UpdateSystemSettings)
			protected.POST("/media", api.UploadMedia)
		}
	}

	return r
}
