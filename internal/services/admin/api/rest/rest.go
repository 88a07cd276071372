// Package rest exposes admin moderation and statistics endpoints.
package rest

import (
	"net/http"
	"time"

	"github.com/studycommons/studycommons/internal/platform/httpapi"
	accountsrest "github.com/studycommons/studycommons/internal/services/accounts/api/rest"
	"github.com/studycommons/studycommons/internal/services/accounts/user"
	"github.com/studycommons/studycommons/internal/services/admin/app"
	"github.com/studycommons/studycommons/internal/services/library/resource"
)

// Handler serves admin endpoints. Every route requires the admin role.
type Handler struct {
	svc *app.Service
}

// New builds an admin API handler.
func New(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts admin routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("DELETE /api/v1/admin/resources/{id}", accountsrest.RequireAdmin(h.removeResource))
	mux.HandleFunc("POST /api/v1/admin/users/{id}/suspend", accountsrest.RequireAdmin(h.suspendUser))
	mux.HandleFunc("POST /api/v1/admin/users/{id}/reinstate", accountsrest.RequireAdmin(h.reinstateUser))
	mux.HandleFunc("GET /api/v1/admin/stats", accountsrest.RequireAdmin(h.getStats))
}

type removedResourcePayload struct {
	ID          string `json:"id"`
	OwnerUserID string `json:"owner_user_id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	UpdatedAt   string `json:"updated_at"`
}

type removeResourceRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) removeResource(w http.ResponseWriter, r *http.Request) {
	var req removeResourceRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := httpapi.Decode(r, &req); err != nil {
			httpapi.WriteBadRequest(w, r, "invalid request body")
			return
		}
	}
	removed, err := h.svc.RemoveResource(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, resourceToPayload(removed))
}

func resourceToPayload(res resource.Resource) removedResourcePayload {
	return removedResourcePayload{
		ID:          res.ID,
		OwnerUserID: res.OwnerUserID,
		Title:       res.Title,
		Status:      string(res.Status),
		UpdatedAt:   res.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type userPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	SuspendedAt string `json:"suspended_at,omitempty"`
}

func userToPayload(u user.User) userPayload {
	payload := userPayload{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
	}
	if u.SuspendedAt != nil {
		payload.SuspendedAt = u.SuspendedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func (h *Handler) suspendUser(w http.ResponseWriter, r *http.Request) {
	suspended, err := h.svc.SuspendUser(r.Context(), r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, userToPayload(suspended))
}

func (h *Handler) reinstateUser(w http.ResponseWriter, r *http.Request) {
	reinstated, err := h.svc.ReinstateUser(r.Context(), r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, userToPayload(reinstated))
}

type statsPayload struct {
	Users     int `json:"users"`
	Resources int `json:"resources"`
	Votes     int `json:"votes"`
	Proposals int `json:"proposals"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStats(r.Context())
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, statsPayload{
		Users:     stats.Users,
		Resources: stats.Resources,
		Votes:     stats.Votes,
		Proposals: stats.Proposals,
	})
}
