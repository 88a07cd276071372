// Package rest exposes the notifications service over the JSON API and a
// websocket feed.
package rest

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/httpapi"
	"github.com/studycommons/studycommons/internal/platform/requestctx"
	"github.com/studycommons/studycommons/internal/services/notifications/app"
	"github.com/studycommons/studycommons/internal/services/notifications/storage"
	"golang.org/x/text/message"
)

// Handler serves notification feed endpoints.
type Handler struct {
	svc *app.Service
}

// New builds a notifications API handler.
func New(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts notification routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/notifications", h.listNotifications)
	mux.HandleFunc("GET /api/v1/notifications/unread_count", h.unreadCount)
	mux.HandleFunc("POST /api/v1/notifications/{id}/open", h.openNotification)
	mux.HandleFunc("GET /api/v1/notifications/ws", h.feed)
}

type notificationPayload struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	RefID     string `json:"ref_id,omitempty"`
	ReadAt    string `json:"read_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

// toPayload renders a stored notification for one reader. The stored title is
// a message catalog key; unknown keys pass through verbatim.
func toPayload(n storage.Notification, printer *message.Printer) notificationPayload {
	title := n.Title
	if localized := printer.Sprintf(n.Title); localized != "" && localized != n.Title {
		title = localized
	}
	payload := notificationPayload{
		ID:        n.ID,
		Kind:      n.Kind,
		Title:     title,
		Body:      n.Body,
		RefID:     n.RefID,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		payload.ReadAt = n.ReadAt.UTC().Format(time.RFC3339)
	}
	return payload
}

type listNotificationsResponse struct {
	Notifications []notificationPayload `json:"notifications"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.svc.List(r.Context(), app.ListInput{
		UserID:     userID,
		UnreadOnly: query.Get("unread") == "true",
		PageSize:   pageSize,
		PageToken:  query.Get("page_token"),
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	printer := message.NewPrinter(httpapi.ResolveTag(r))
	out := listNotificationsResponse{NextPageToken: page.NextPageToken}
	out.Notifications = make([]notificationPayload, 0, len(page.Notifications))
	for _, n := range page.Notifications {
		out.Notifications = append(out.Notifications, toPayload(n, printer))
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

type unreadCountResponse struct {
	Count int `json:"count"`
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	count, err := h.svc.UnreadCount(r.Context(), userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, unreadCountResponse{Count: count})
}

func (h *Handler) openNotification(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	opened, err := h.svc.Open(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toPayload(opened, message.NewPrinter(httpapi.ResolveTag(r))))
}
