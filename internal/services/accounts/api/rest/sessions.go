package rest

import (
	"net/http"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/httpapi"
)

type sessionPayload struct {
	ID        string      `json:"id"`
	ExpiresAt string      `json:"expires_at"`
	User      userPayload `json:"user"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "no session cookie"))
		return
	}
	session, err := h.svc.GetWebSession(r.Context(), cookie.Value)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sessionPayload{
		ID:        session.Session.ID,
		ExpiresAt: session.Session.ExpiresAt.UTC().Format(time.RFC3339),
		User:      userToPayload(session.User, ""),
	})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err == nil {
		if revokeErr := h.svc.RevokeWebSession(r.Context(), cookie.Value); revokeErr != nil {
			httpapi.WriteError(w, r, revokeErr)
			return
		}
	}
	h.clearSessionCookie(w)
	httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

type accessTokenPayload struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (h *Handler) createAccessToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "no session cookie"))
		return
	}
	minted, err := h.svc.CreateAccessToken(r.Context(), cookie.Value)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, accessTokenPayload{
		Token:     minted.Token,
		ExpiresAt: minted.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
