package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitebuilder/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// respondServiceError maps service errors onto status codes. Unknown errors are
// logged and reported as 500 with fallback as the message.
func respondServiceError(c *gin.Context, err error, fallback string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "提交的内容不合法",
			"fields": validationErr.Fields,
		})
	case errors.Is(err, service.ErrPageNotFound):
		respondError(c, http.StatusNotFound, "页面不存在")
	case errors.Is(err, service.ErrComponentNotFound):
		respondError(c, http.StatusNotFound, "页面组件不存在")
	case errors.Is(err, service.ErrNotAuthorized):
		respondError(c, http.StatusForbidden, "需要管理员权限")
	default:
		log.Printf("[handler] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
