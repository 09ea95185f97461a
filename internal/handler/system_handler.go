package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitebuilder/internal/service"
)

// HealthCheck 提供监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}

// Omitted keys keep their stored value.
type systemSettingsRequest struct {
	SiteName   *string `json:"siteName"`
	AdminEmail *string `json:"adminEmail"`
}

// GetSystemSettings 返回当前系统设置。
func (a *API) GetSystemSettings(c *gin.Context) {
	if _, ok := a.authorize(c); !ok {
		return
	}

	settings, err := a.system.GetSettings(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "获取系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": systemSettingsPayload(settings)})
}

// UpdateSystemSettings 保存系统设置。
func (a *API) UpdateSystemSettings(c *gin.Context) {
	actor, ok := a.authorize(c)
	if !ok {
		return
	}

	var payload systemSettingsRequest
	if !bindJSON(c, &payload, "请填写完整的系统设置") {
		return
	}

	settings, err := a.system.UpdateSettings(c.Request.Context(), actor, service.SystemSettingsInput{
		SiteName:   payload.SiteName,
		AdminEmail: payload.AdminEmail,
	})
	if err != nil {
		respondServiceError(c, err, "保存系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "系统设置已保存",
		"settings": systemSettingsPayload(settings),
	})
}

func systemSettingsPayload(settings service.SystemSettings) gin.H {
	return gin.H{
		"siteName":   settings.SiteName,
		"adminEmail": settings.AdminEmail,
	}
}
