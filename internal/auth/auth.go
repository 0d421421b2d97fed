// Package auth implements the role-based session gate: one flag cookie per
// role, a shared password per role, and middleware that turns the cookies into
// an explicit Session value on the request context.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAssistant Role = "assistant"
	RoleMax       Role = "max"
)

// AllRoles is the fixed set of roles, in the order cookies are cleared on logout.
var AllRoles = []Role{RoleAdmin, RoleAssistant, RoleMax}

const (
	sessionValue  = "1"
	sessionMaxAge = 30 * 24 * time.Hour
)

var (
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleAssistant, RoleMax:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// CookieName is the name of the marker cookie for role.
func (r Role) CookieName() string {
	return string(r) + "_session"
}

// Gate checks role passwords and issues or inspects session cookies.
type Gate struct {
	secrets map[Role]string
	secure  bool
}

type Secrets struct {
	Admin     string
	Assistant string
	Max       string
}

func NewGate(s Secrets, secure bool) *Gate {
	return &Gate{
		secrets: map[Role]string{
			RoleAdmin:     s.Admin,
			RoleAssistant: s.Assistant,
			RoleMax:       s.Max,
		},
		secure: secure,
	}
}

// Login verifies password for role and, on success, sets the role's session
// cookie on w. Nothing is written on failure.
func (g *Gate) Login(w http.ResponseWriter, role Role, password string) error {
	secret, ok := g.secrets[role]
	if !ok {
		return ErrInvalidRole
	}
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(password)) != 1 {
		return ErrInvalidCredentials
	}

	http.SetCookie(w, &http.Cookie{
		Name:     role.CookieName(),
		Value:    sessionValue,
		Path:     "/",
		MaxAge:   int(sessionMaxAge / time.Second),
		Expires:  time.Now().Add(sessionMaxAge),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Logout expires every role cookie.
func (g *Gate) Logout(w http.ResponseWriter) {
	for _, role := range AllRoles {
		http.SetCookie(w, &http.Cookie{
			Name:     role.CookieName(),
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   g.secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// HasRole reports whether r carries a valid session marker for role.
func HasRole(r *http.Request, role Role) bool {
	c, err := r.Cookie(role.CookieName())
	if err != nil {
		return false
	}
	return c.Value == sessionValue
}

// Session is the authenticated caller of a request.
type Session struct {
	Roles []Role
}

func (s Session) Has(role Role) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// SessionFrom collects every role the request is logged in as.
func SessionFrom(r *http.Request) Session {
	var s Session
	for _, role := range AllRoles {
		if HasRole(r, role) {
			s.Roles = append(s.Roles, role)
		}
	}
	return s
}

// Require admits requests holding at least one of roles and calls
// unauthorized for the rest.
func Require(unauthorized http.HandlerFunc, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFrom(r)
			for _, role := range roles {
				if s.Has(role) {
					next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
					return
				}
			}
			unauthorized(w, r)
		})
	}
}
