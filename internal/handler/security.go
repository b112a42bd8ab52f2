package handler

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/farmtocup-pos/internal/domain/auth"
)

// tokenCookie is the cookie set by the login service.
const tokenCookie = "token"

// authenticate verifies the access token from a Bearer Authorization header,
// or the token cookie when there is none, and stores the principal in the
// request context.
func (h *Handler) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "Please login to access this resource")
			return
		}

		p, err := h.tokens.Verify(raw)
		if err != nil {
			zctx.From(r.Context()).Debug("Token rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = zctx.With(ctx, zap.String("user_id", p.UserID), zap.String("role", string(p.Role)))
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if token = strings.TrimSpace(token); ok && token != "" && strings.EqualFold(scheme, "Bearer") {
		return token
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// requireRole admits only principals with one of roles. It must run after
// authenticate.
func (h *Handler) requireRole(roles ...auth.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, err := auth.FromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Please login to access this resource")
				return
			}
			if !slices.Contains(roles, p.Role) {
				writeError(w, http.StatusForbidden, fmt.Sprintf("Role (%s) is not allowed to access this resource", p.Role))
				return
			}
			next(w, r)
		}
	}
}
