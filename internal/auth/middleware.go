package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"
)

const realm = "loadprofile"

// Middleware checks the bearer token of guarded requests against the route
// policy and stores the caller identity in the request context.
type Middleware struct {
	secret []byte
	policy Policy
	logger *log.Logger
}

// MiddlewareOption configures the middleware.
type MiddlewareOption func(*Middleware)

// WithDenialLogger logs every rejected request.
func WithDenialLogger(logger *log.Logger) MiddlewareOption {
	return func(m *Middleware) { m.logger = logger }
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{secret: secret, policy: policy}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wrap guards next. Exempt and unguarded paths pass through untouched.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, guarded := m.policy.RequiredRole(r)
		if !guarded {
			next.ServeHTTP(w, r)
			return
		}

		raw, present := bearerToken(r)
		if !present {
			m.challenge(w, r, "missing_token", "")
			return
		}
		claims, err := ParseJWT(raw, m.secret)
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, ErrMissingTenant) {
				reason = "missing_tenant"
			}
			m.challenge(w, r, reason, `error="invalid_token"`)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			m.deny(r, "insufficient_role", claims.TenantID, claims.Subject)
			http.Error(w, "forbidden: requires "+string(required), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.TenantID, role, claims.Subject)))
	})
}

func (m *Middleware) challenge(w http.ResponseWriter, r *http.Request, reason, detail string) {
	m.deny(r, reason, "", "")
	value := `Bearer realm="` + realm + `"`
	if detail != "" {
		value += ", " + detail
	}
	w.Header().Set("WWW-Authenticate", value)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func (m *Middleware) deny(r *http.Request, reason, tenantID, subject string) {
	if m.logger == nil {
		return
	}
	m.logger.Printf("event=auth_denied method=%s path=%s reason=%s tenant_id=%s subject=%s",
		r.Method, r.URL.Path, reason, tenantID, subject)
}

// bearerToken reports the token and whether an Authorization header of the
// Bearer scheme was sent at all.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
