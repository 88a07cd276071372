package rest

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/httpapi"
	"github.com/studycommons/studycommons/internal/platform/requestctx"
)

type passkeyCeremonyPayload struct {
	SessionID   string          `json:"session_id"`
	OptionsJSON json.RawMessage `json:"options"`
}

type finishPasskeyRequest struct {
	SessionID      string          `json:"session_id"`
	CredentialJSON json.RawMessage `json:"credential"`
}

func (h *Handler) beginPasskeyRegistration(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	ceremony, err := h.svc.BeginPasskeyRegistration(r.Context(), userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, passkeyCeremonyPayload{
		SessionID:   ceremony.SessionID,
		OptionsJSON: ceremony.OptionsJSON,
	})
}

func (h *Handler) finishPasskeyRegistration(w http.ResponseWriter, r *http.Request) {
	var req finishPasskeyRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	result, err := h.svc.FinishPasskeyRegistration(r.Context(), req.SessionID, req.CredentialJSON)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"user":          userToPayload(result.User, ""),
		"credential_id": result.CredentialID,
	})
}

type beginPasskeyLoginRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) beginPasskeyLogin(w http.ResponseWriter, r *http.Request) {
	var req beginPasskeyLoginRequest
	if r.ContentLength > 0 {
		if err := httpapi.Decode(r, &req); err != nil {
			httpapi.WriteBadRequest(w, r, "invalid request body")
			return
		}
	}
	ceremony, err := h.svc.BeginPasskeyLogin(r.Context(), req.UserID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, passkeyCeremonyPayload{
		SessionID:   ceremony.SessionID,
		OptionsJSON: ceremony.OptionsJSON,
	})
}

func (h *Handler) finishPasskeyLogin(w http.ResponseWriter, r *http.Request) {
	var req finishPasskeyRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	result, err := h.svc.FinishPasskeyLogin(r.Context(), req.SessionID, req.CredentialJSON)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	session, err := h.svc.CreateWebSession(r.Context(), result.User.ID, 0)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	h.setSessionCookie(w, session.Session.ID, session.Session.ExpiresAt)

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"user":          userToPayload(result.User, ""),
		"credential_id": result.CredentialID,
	})
}
