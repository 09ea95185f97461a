package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sitebuilder/internal/auth"
	"github.com/sitebuilder/internal/media"
	"github.com/sitebuilder/internal/service"
	"gorm.io/gorm"
)

const (
	sessionUserIDKey = "user_id"
	actorContextKey  = "__authorized_principal"
)

// PrincipalResolver returns the acting principal of a request, or nil when
// nobody is logged in.
type PrincipalResolver func(c *gin.Context) (*auth.Principal, error)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	pages      *service.PageService
	users      *service.UserService
	system     *service.SystemSettingService
	policy     auth.Policy
	resolver   media.Resolver
	principals PrincipalResolver
	uploadDir  string
	uploadURL  string
}

// NewAPI constructs a handler set with shared services. Media references are
// resolved against mediaBaseURL, or against uploadURL when it is empty.
func NewAPI(gdb *gorm.DB, uploadDir, uploadURL, mediaBaseURL string) *API {
	users := service.NewUserService(gdb)
	system := service.NewSystemSettingService(gdb)

	base := mediaBaseURL
	if base == "" {
		base = uploadURL
	}

	a := &API{
		db:        gdb,
		pages:     service.NewPageService(gdb),
		users:     users,
		system:    system,
		policy:    auth.TieredPolicy{Roles: users, Emails: system},
		resolver:  media.NewCDNResolver(base),
		uploadDir: uploadDir,
		uploadURL: uploadURL,
	}
	a.principals = a.sessionPrincipal
	return a
}

// SetPrincipalResolver replaces the session based identity lookup.
func (a *API) SetPrincipalResolver(resolver PrincipalResolver) {
	if resolver == nil {
		resolver = a.sessionPrincipal
	}
	a.principals = resolver
}

// SetMediaResolver replaces the CDN resolver used on page reads.
func (a *API) SetMediaResolver(resolver media.Resolver) {
	if resolver != nil {
		a.resolver = resolver
	}
}

// SetPolicy replaces the admin policy. A nil policy restores the role then
// admin_email default.
func (a *API) SetPolicy(policy auth.Policy) {
	if policy == nil {
		policy = auth.TieredPolicy{Roles: a.users, Emails: a.system}
	}
	a.policy = policy
}

// gate builds the admin check. It is created per request so no decision is
// ever reused across requests.
func (a *API) gate() *auth.Gate {
	return auth.GateFor(a.policy)
}

func (a *API) sessionPrincipal(c *gin.Context) (*auth.Principal, error) {
	session := sessions.Default(c)
	userID, ok := session.Get(sessionUserIDKey).(uint)
	if !ok || userID == 0 {
		return nil, nil
	}

	principal, err := a.users.Principal(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return principal, nil
}

func (a *API) currentPrincipal(c *gin.Context) *auth.Principal {
	principal, err := a.principals(c)
	if err != nil {
		log.Printf("[auth] resolve principal failed: %v", err)
		return nil
	}
	return principal
}

// authorize runs the admin gate for this request and writes 401 or 403 when it
// fails.
func (a *API) authorize(c *gin.Context) (auth.AuthorizedPrincipal, bool) {
	if cached, exists := c.Get(actorContextKey); exists {
		if actor, ok := cached.(auth.AuthorizedPrincipal); ok && actor.Valid() {
			return actor, true
		}
	}

	actor, err := a.gate().Authorize(c.Request.Context(), a.currentPrincipal(c))
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		respondError(c, http.StatusUnauthorized, "请先登录")
		return actor, false
	case err != nil:
		respondError(c, http.StatusForbidden, "需要管理员权限")
		return actor, false
	}
	c.Set(actorContextKey, actor)
	return actor, true
}

// viewer returns the authorized principal when the caller passes the gate, nil
// otherwise. It never writes a response.
func (a *API) viewer(c *gin.Context) *auth.AuthorizedPrincipal {
	actor, err := a.gate().Authorize(c.Request.Context(), a.currentPrincipal(c))
	if err != nil {
		return nil
	}
	return &actor
}

// AdminRequired 拒绝未登录（401）或非管理员（403）的请求。
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authorize(c); !ok {
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *API) hint(ctx context.Context, principal *auth.Principal) auth.UIHint {
	return a.gate().Hint(ctx, principal)
}
