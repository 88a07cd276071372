// Package rest exposes the accounts service over the JSON API.
package rest

import (
	"net/http"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/httpapi"
	"github.com/studycommons/studycommons/internal/platform/requestctx"
	"github.com/studycommons/studycommons/internal/services/accounts/app"
	"github.com/studycommons/studycommons/internal/services/accounts/user"
)

// SessionCookieName stores the durable web session identifier.
const SessionCookieName = "sc_session"

// Handler serves account, passkey, and session endpoints.
type Handler struct {
	svc *app.Service

	// SecureCookies marks session cookies Secure; off for local development.
	SecureCookies bool
}

// New builds an accounts API handler.
func New(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts account routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/accounts", h.createAccount)
	mux.HandleFunc("GET /api/v1/accounts/{id}", h.getAccount)
	mux.HandleFunc("GET /api/v1/accounts/me", h.getOwnAccount)
	mux.HandleFunc("PATCH /api/v1/accounts/me", h.updateProfile)
	mux.HandleFunc("PUT /api/v1/accounts/me/username", h.setUsername)
	mux.HandleFunc("GET /api/v1/usernames/{username}", h.lookupUsername)

	mux.HandleFunc("POST /api/v1/auth/passkeys/register/begin", h.beginPasskeyRegistration)
	mux.HandleFunc("POST /api/v1/auth/passkeys/register/finish", h.finishPasskeyRegistration)
	mux.HandleFunc("POST /api/v1/auth/passkeys/login/begin", h.beginPasskeyLogin)
	mux.HandleFunc("POST /api/v1/auth/passkeys/login/finish", h.finishPasskeyLogin)

	mux.HandleFunc("GET /api/v1/auth/session", h.getSession)
	mux.HandleFunc("DELETE /api/v1/auth/session", h.revokeSession)
	mux.HandleFunc("POST /api/v1/auth/token", h.createAccessToken)
}

// userPayload is the JSON shape for an account identity.
type userPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	Username    string `json:"username,omitempty"`
	Role        string `json:"role"`
	Suspended   bool   `json:"suspended,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func userToPayload(u user.User, username string) userPayload {
	return userPayload{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		Username:    username,
		Role:        string(u.Role),
		Suspended:   u.Suspended(),
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type createAccountRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Username    string `json:"username"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	account, err := h.svc.CreateAccount(r.Context(), app.CreateAccountInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Username:    req.Username,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	// A fresh account gets a session so the passkey registration ceremony
	// that follows is already authenticated.
	session, err := h.svc.CreateWebSession(r.Context(), account.User.ID, 0)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	h.setSessionCookie(w, session.Session.ID, session.Session.ExpiresAt)

	httpapi.WriteJSON(w, http.StatusCreated, userToPayload(account.User, account.Username))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, userToPayload(account.User, account.Username))
}

func (h *Handler) getOwnAccount(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	account, err := h.svc.GetAccount(r.Context(), userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, userToPayload(account.User, account.Username))
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	var req updateProfileRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	updated, err := h.svc.UpdateProfile(r.Context(), userID, app.UpdateProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	account, err := h.svc.GetAccount(r.Context(), updated.ID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, userToPayload(account.User, account.Username))
}

type setUsernameRequest struct {
	Username string `json:"username"`
}

func (h *Handler) setUsername(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	var req setUsernameRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	record, err := h.svc.SetUsername(r.Context(), userID, req.Username)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"username": record.Username})
}

func (h *Handler) lookupUsername(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.LookupUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, userToPayload(account.User, account.Username))
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
