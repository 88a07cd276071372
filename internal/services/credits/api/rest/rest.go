// Package rest exposes the credits service over the JSON API.
package rest

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/httpapi"
	"github.com/studycommons/studycommons/internal/platform/requestctx"
	"github.com/studycommons/studycommons/internal/services/credits/app"
	"github.com/studycommons/studycommons/internal/services/credits/storage"
)

// Handler serves credit balance and ledger endpoints.
type Handler struct {
	svc *app.Service
}

// New builds a credits API handler.
func New(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts credits routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/credits/balance", h.getBalance)
	mux.HandleFunc("GET /api/v1/credits/entries", h.listEntries)
	mux.HandleFunc("GET /api/v1/users/{id}/credits/balance", h.getUserBalance)
}

type balancePayload struct {
	UserID    string `json:"user_id"`
	Total     int    `json:"total"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func balanceToPayload(b storage.Balance) balancePayload {
	payload := balancePayload{UserID: b.UserID, Total: b.Total}
	if !b.UpdatedAt.IsZero() {
		payload.UpdatedAt = b.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, balanceToPayload(balance))
}

func (h *Handler) getUserBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.svc.GetBalance(r.Context(), r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, balanceToPayload(balance))
}

type entryPayload struct {
	ID        string `json:"id"`
	Reason    string `json:"reason"`
	RefID     string `json:"ref_id,omitempty"`
	Delta     int    `json:"delta"`
	CreatedAt string `json:"created_at"`
}

type listEntriesResponse struct {
	Entries       []entryPayload `json:"entries"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}

	query := r.URL.Query()
	pageSize := 0
	if raw := query.Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpapi.WriteBadRequest(w, r, "page_size must be an integer")
			return
		}
		pageSize = parsed
	}

	page, err := h.svc.ListEntries(r.Context(), userID, pageSize, query.Get("page_token"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	out := listEntriesResponse{NextPageToken: page.NextPageToken}
	out.Entries = make([]entryPayload, 0, len(page.Entries))
	for _, entry := range page.Entries {
		out.Entries = append(out.Entries, entryPayload{
			ID:        entry.ID,
			Reason:    entry.Reason,
			RefID:     entry.RefID,
			Delta:     entry.Delta,
			CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}
