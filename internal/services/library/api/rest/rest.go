// Package rest exposes the library service over the JSON API.
package rest

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/httpapi"
	"github.com/studycommons/studycommons/internal/platform/requestctx"
	"github.com/studycommons/studycommons/internal/services/library/app"
	"github.com/studycommons/studycommons/internal/services/library/resource"
)

// Handler serves resource and vote endpoints.
type Handler struct {
	svc *app.Service
}

// New builds a library API handler.
func New(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts library routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/resources", h.submit)
	mux.HandleFunc("GET /api/v1/resources", h.list)
	mux.HandleFunc("GET /api/v1/resources/{id}", h.get)
	mux.HandleFunc("PATCH /api/v1/resources/{id}", h.update)
	mux.HandleFunc("DELETE /api/v1/resources/{id}", h.archive)

	mux.HandleFunc("PUT /api/v1/resources/{id}/vote", h.castVote)
	mux.HandleFunc("DELETE /api/v1/resources/{id}/vote", h.clearVote)
	mux.HandleFunc("GET /api/v1/resources/{id}/vote", h.getVote)
}

// resourcePayload is the JSON shape for a resource.
type resourcePayload struct {
	ID          string   `json:"id"`
	OwnerUserID string   `json:"owner_user_id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Level       string   `json:"level"`
	Tags        []string `json:"tags,omitempty"`
	Status      string   `json:"status"`
	Score       int      `json:"score"`
	UpCount     int      `json:"up_count"`
	DownCount   int      `json:"down_count"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func resourceToPayload(r resource.Resource) resourcePayload {
	return resourcePayload{
		ID:          r.ID,
		OwnerUserID: r.OwnerUserID,
		Title:       r.Title,
		URL:         r.URL,
		Description: r.Description,
		Subject:     r.Subject,
		Level:       string(r.Level),
		Tags:        r.Tags,
		Status:      string(r.Status),
		Score:       r.Score,
		UpCount:     r.UpCount,
		DownCount:   r.DownCount,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type submitRequest struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Subject     string   `json:"subject"`
	Level       string   `json:"level"`
	Tags        []string `json:"tags"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	var req submitRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	created, err := h.svc.Submit(r.Context(), app.SubmitInput{
		OwnerUserID: userID,
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Subject:     req.Subject,
		Level:       req.Level,
		Tags:        req.Tags,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, resourceToPayload(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, resourceToPayload(found))
}

type listResponse struct {
	Resources     []resourcePayload `json:"resources"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.svc.List(r.Context(), app.ListInput{
		Filter:    query.Get("filter"),
		OrderBy:   query.Get("order_by"),
		PageSize:  pageSize,
		PageToken: query.Get("page_token"),
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	out := listResponse{NextPageToken: page.NextPageToken}
	out.Resources = make([]resourcePayload, 0, len(page.Resources))
	for _, item := range page.Resources {
		out.Resources = append(out.Resources, resourceToPayload(item))
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

type updateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Subject     string   `json:"subject"`
	Level       string   `json:"level"`
	Tags        []string `json:"tags"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	var req updateRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	updated, err := h.svc.Update(r.Context(), r.PathValue("id"), userID, app.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Subject:     req.Subject,
		Level:       req.Level,
		Tags:        req.Tags,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, resourceToPayload(updated))
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	archived, err := h.svc.Archive(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, resourceToPayload(archived))
}

type votePayload struct {
	ResourceID string `json:"resource_id"`
	Value      int    `json:"value"`
	Score      int    `json:"score"`
	UpCount    int    `json:"up_count"`
	DownCount  int    `json:"down_count"`
}

type castVoteRequest struct {
	Value int `json:"value"`
}

func (h *Handler) castVote(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	var req castVoteRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	change, err := h.svc.CastVote(r.Context(), r.PathValue("id"), userID, req.Value)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, votePayload{
		ResourceID: change.Resource.ID,
		Value:      change.Current,
		Score:      change.Resource.Score,
		UpCount:    change.Resource.UpCount,
		DownCount:  change.Resource.DownCount,
	})
}

func (h *Handler) clearVote(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	change, err := h.svc.ClearVote(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, votePayload{
		ResourceID: change.Resource.ID,
		Value:      change.Current,
		Score:      change.Resource.Score,
		UpCount:    change.Resource.UpCount,
		DownCount:  change.Resource.DownCount,
	})
}

func (h *Handler) getVote(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	vote, err := h.svc.GetVote(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, votePayload{
		ResourceID: vote.ResourceID,
		Value:      vote.Value,
	})
}
