package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/masig/pricebook/internal/platform/httpx"
	"github.com/masig/pricebook/internal/shared"
)

type principalKey struct{}

// ContextWithPrincipal stores p in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal resolved for the request.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Paths   Paths
}

// Resolve attaches the request's Principal to its context.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := m.resolve(r)
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// Page guards a page route. Visitors without a session are redirected to
// sign-in and users lacking perm to the landing page.
func (m Middleware) Page(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := m.principal(r)
			adm := m.Paths.Admit(p.State, p.Grants, perm)
			if !adm.Allowed {
				if adm.Redirect == "" {
					w.WriteHeader(http.StatusAccepted)
					return
				}
				http.Redirect(w, r, adm.Redirect, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PageRole guards a page route by role using the same redirects as Page.
func (m Middleware) PageRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := m.principal(r)
			adm := m.Paths.Admit(p.State, p.Grants, "")
			if adm.Allowed && !p.Grants.HasRole(role) {
				adm = Admission{Redirect: m.Paths.landing()}
			}
			if !adm.Allowed {
				if adm.Redirect == "" {
					w.WriteHeader(http.StatusAccepted)
					return
				}
				http.Redirect(w, r, adm.Redirect, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// API guards an API route with problem responses instead of redirects.
func (m Middleware) API(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := m.principal(r)
			if p.State != StateAuthenticated {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if perm != "" && !p.Grants.HasPermission(perm) {
				m.logDenied(r, p, perm)
				httpx.RespondError(w, shared.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole guards an API route by role.
func (m Middleware) RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := m.principal(r)
			if p.State != StateAuthenticated {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if !p.Grants.HasRole(role) {
				m.logDenied(r, p, "role:"+string(role))
				httpx.RespondError(w, shared.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) principal(r *http.Request) Principal {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return p
	}
	return m.resolve(r)
}

func (m Middleware) resolve(r *http.Request) Principal {
	sess := shared.SessionFromContext(r.Context())
	if m.Service == nil {
		return Principal{State: StateUnauthenticated}
	}
	return m.Service.ResolveInto(r.Context(), NewTracker(), sess)
}

func (m Middleware) logDenied(r *http.Request, p Principal, perm string) {
	if m.Logger == nil {
		return
	}
	m.Logger.Warn("rbac denied",
		slog.String("path", r.URL.Path),
		slog.String("user_id", p.UserID().String()),
		slog.String("required", perm))
}
