package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sitebuilder/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login 校验邮箱与密码，成功后将 user_id 写入会话。
func (a *API) Login(c *gin.Context) {
	var payload loginRequest
	if !bindJSON(c, &payload, "请填写邮箱和密码") {
		return
	}

	user, err := a.users.Authenticate(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "邮箱或密码错误")
			return
		}
		respondServiceError(c, err, "登录失败，请稍后重试")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	principal, err := a.users.Principal(c.Request.Context(), user.ID)
	if err != nil {
		respondServiceError(c, err, "登录失败，请稍后重试")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": a.hint(c.Request.Context(), principal)})
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// CurrentUser 返回编辑界面使用的提示信息，仅供展示，不能作为授权依据。
func (a *API) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": a.hint(c.Request.Context(), a.currentPrincipal(c))})
}
