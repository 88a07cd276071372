package rest

import (
	"net/http"
	"strings"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/httpapi"
	"github.com/studycommons/studycommons/internal/platform/requestctx"
	"github.com/studycommons/studycommons/internal/services/accounts/user"
)

// Middleware resolves the request identity from a bearer access token or the
// session cookie and stores it in the request context. Requests without
// credentials pass through anonymously; handlers that need identity enforce
// it themselves.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if authorization := strings.TrimSpace(r.Header.Get("Authorization")); authorization != "" {
			tokenValue, ok := strings.CutPrefix(authorization, "Bearer ")
			if !ok {
				httpapi.WriteError(w, r, apperrors.New(apperrors.CodeTokenInvalid, "authorization scheme must be Bearer"))
				return
			}
			userID, role, err := h.svc.VerifyAccessToken(tokenValue)
			if err != nil {
				httpapi.WriteError(w, r, err)
				return
			}
			ctx = requestctx.WithUserID(ctx, userID)
			ctx = requestctx.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			session, err := h.svc.GetWebSession(ctx, cookie.Value)
			if err == nil {
				ctx = requestctx.WithUserID(ctx, session.User.ID)
				ctx = requestctx.WithRole(ctx, string(session.User.Role))
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser wraps a handler and rejects unauthenticated requests.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requestctx.UserIDFromContext(r.Context()) == "" {
			httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
			return
		}
		next(w, r)
	}
}

// RequireAdmin wraps a handler and rejects non-admin requests.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requestctx.UserIDFromContext(r.Context()) == "" {
			httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
			return
		}
		if requestctx.RoleFromContext(r.Context()) != string(user.RoleAdmin) {
			httpapi.WriteError(w, r, apperrors.New(apperrors.CodePermissionDenied, "admin role required"))
			return
		}
		next(w, r)
	}
}
