package auth

import (
	"context"
	"errors"
	"log"
)

// RoleAdmin is the only role value that grants mutation rights.
const RoleAdmin = "admin"

var (
	// ErrUnauthenticated 表示当前请求没有登录用户。
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden 表示当前用户不是管理员。
	ErrForbidden = errors.New("admin privileges required")
)

// Principal is the acting identity as reported by the session collaborator.
// Its Role is informational; the gate looks the role up again.
type Principal struct {
	ID    uint
	Email string
	Role  string
}

// AuthorizedPrincipal can only be produced by Gate.Authorize. Mutating service
// calls take one as proof that the admin check ran for this request.
type AuthorizedPrincipal struct {
	id    uint
	email string
}

// ID returns the user id of the authorized principal.
func (a AuthorizedPrincipal) ID() uint { return a.id }

// Email returns the email of the authorized principal.
func (a AuthorizedPrincipal) Email() string { return a.email }

// Valid reports whether a was produced by a gate.
func (a AuthorizedPrincipal) Valid() bool { return a.id != 0 || a.email != "" }

// UIHint is advisory state for the editing UI. It is never accepted as proof of
// authorization.
type UIHint struct {
	Authenticated bool   `json:"authenticated"`
	IsAdmin       bool   `json:"isAdmin"`
	Email         string `json:"email,omitempty"`
}

// RoleSource looks up the stored profile role of a principal.
type RoleSource interface {
	RoleFor(ctx context.Context, principalID uint) (string, error)
}

// AdminEmailSource looks up the global admin_email setting.
type AdminEmailSource interface {
	AdminEmail(ctx context.Context) (string, error)
}

// Policy decides whether a principal may mutate pages.
type Policy interface {
	IsAdmin(ctx context.Context, principal Principal) bool
}

// TieredPolicy 先检查用户角色，再回退到 admin_email 设置。任一环节查询失败都按拒绝处理。
// Emails may be nil once the legacy fallback is retired.
type TieredPolicy struct {
	Roles  RoleSource
	Emails AdminEmailSource
}

// IsAdmin evaluates both tiers without caching.
func (p TieredPolicy) IsAdmin(ctx context.Context, principal Principal) bool {
	if p.Roles != nil && principal.ID != 0 {
		role, err := p.Roles.RoleFor(ctx, principal.ID)
		switch {
		case err != nil:
			log.Printf("[auth] role lookup failed for user %d: %v", principal.ID, err)
		case role == RoleAdmin:
			return true
		}
	}

	if p.Emails != nil && principal.Email != "" {
		adminEmail, err := p.Emails.AdminEmail(ctx)
		switch {
		case err != nil:
			log.Printf("[auth] admin_email lookup failed: %v", err)
		case adminEmail != "" && adminEmail == principal.Email:
			return true
		}
	}

	return false
}

// Gate turns a Policy decision into an AuthorizedPrincipal or a UIHint.
type Gate struct {
	policy Policy
}

// NewGate builds a gate over the role-then-admin_email policy.
func NewGate(roles RoleSource, emails AdminEmailSource) *Gate {
	return GateFor(TieredPolicy{Roles: roles, Emails: emails})
}

// GateFor builds a gate over an arbitrary policy.
func GateFor(policy Policy) *Gate {
	return &Gate{policy: policy}
}

// IsAdmin asks the policy. A gate without a policy denies everyone.
func (g *Gate) IsAdmin(ctx context.Context, principal Principal) bool {
	if g == nil || g.policy == nil {
		return false
	}
	return g.policy.IsAdmin(ctx, principal)
}

// Authorize runs the admin check for a request. A nil principal yields
// ErrUnauthenticated and a non-admin principal yields ErrForbidden.
func (g *Gate) Authorize(ctx context.Context, principal *Principal) (AuthorizedPrincipal, error) {
	if principal == nil {
		return AuthorizedPrincipal{}, ErrUnauthenticated
	}
	if !g.IsAdmin(ctx, *principal) {
		return AuthorizedPrincipal{}, ErrForbidden
	}
	return AuthorizedPrincipal{id: principal.ID, email: principal.Email}, nil
}

// Hint builds the advisory UI state for principal.
func (g *Gate) Hint(ctx context.Context, principal *Principal) UIHint {
	if principal == nil {
		return UIHint{}
	}
	return UIHint{
		Authenticated: true,
		IsAdmin:       g.IsAdmin(ctx, *principal),
		Email:         principal.Email,
	}
}
