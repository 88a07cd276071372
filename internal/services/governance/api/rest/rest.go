// Package rest exposes the governance service over the JSON API.
package rest

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/httpapi"
	"github.com/studycommons/studycommons/internal/platform/requestctx"
	"github.com/studycommons/studycommons/internal/services/governance/app"
	"github.com/studycommons/studycommons/internal/services/governance/proposal"
)

// Handler serves proposal and ballot endpoints.
type Handler struct {
	svc *app.Service
}

// New builds a governance API handler.
func New(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts governance routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/proposals", h.createProposal)
	mux.HandleFunc("GET /api/v1/proposals", h.listProposals)
	mux.HandleFunc("GET /api/v1/proposals/{id}", h.getProposal)
	mux.HandleFunc("POST /api/v1/proposals/{id}/open", h.openVoting)
	mux.HandleFunc("POST /api/v1/proposals/{id}/close", h.closeVoting)

	mux.HandleFunc("PUT /api/v1/proposals/{id}/ballot", h.castBallot)
	mux.HandleFunc("GET /api/v1/proposals/{id}/ballot", h.getBallot)
}

type proposalPayload struct {
	ID           string `json:"id"`
	AuthorUserID string `json:"author_user_id"`
	Title        string `json:"title"`
	Body         string `json:"body,omitempty"`
	Status       string `json:"status"`
	OpensAt      string `json:"opens_at,omitempty"`
	ClosesAt     string `json:"closes_at,omitempty"`
	YesCount     int    `json:"yes_count"`
	NoCount      int    `json:"no_count"`
	AbstainCount int    `json:"abstain_count"`
	Outcome      string `json:"outcome"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func proposalToPayload(p proposal.Proposal) proposalPayload {
	payload := proposalPayload{
		ID:           p.ID,
		AuthorUserID: p.AuthorUserID,
		Title:        p.Title,
		Body:         p.Body,
		Status:       string(p.Status),
		YesCount:     p.YesCount,
		NoCount:      p.NoCount,
		AbstainCount: p.AbstainCount,
		Outcome:      string(p.Outcome),
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !p.OpensAt.IsZero() {
		payload.OpensAt = p.OpensAt.UTC().Format(time.RFC3339)
	}
	if !p.ClosesAt.IsZero() {
		payload.ClosesAt = p.ClosesAt.UTC().Format(time.RFC3339)
	}
	return payload
}

type createProposalRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *Handler) createProposal(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	var req createProposalRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	created, err := h.svc.CreateProposal(r.Context(), app.CreateInput{
		AuthorUserID: userID,
		Title:        req.Title,
		Body:         req.Body,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, proposalToPayload(created))
}

func (h *Handler) getProposal(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, proposalToPayload(found))
}

type listProposalsResponse struct {
	Proposals     []proposalPayload `json:"proposals"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

func (h *Handler) listProposals(w http.ResponseWriter, r *http.Request) {
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
		PageSize:  pageSize,
		PageToken: query.Get("page_token"),
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	out := listProposalsResponse{NextPageToken: page.NextPageToken}
	out.Proposals = make([]proposalPayload, 0, len(page.Proposals))
	for _, item := range page.Proposals {
		out.Proposals = append(out.Proposals, proposalToPayload(item))
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

type openVotingRequest struct {
	ClosesAt string `json:"closes_at"`
}

func (h *Handler) openVoting(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	var req openVotingRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	var closesAt time.Time
	if req.ClosesAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ClosesAt)
		if err != nil {
			httpapi.WriteBadRequest(w, r, "closes_at must be an RFC 3339 timestamp")
			return
		}
		closesAt = parsed
	}

	opened, err := h.svc.OpenVoting(r.Context(), r.PathValue("id"), userID, requestctx.RoleFromContext(r.Context()), closesAt)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, proposalToPayload(opened))
}

func (h *Handler) closeVoting(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	closed, err := h.svc.CloseVoting(r.Context(), r.PathValue("id"), userID, requestctx.RoleFromContext(r.Context()))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, proposalToPayload(closed))
}

type ballotPayload struct {
	ProposalID   string `json:"proposal_id"`
	Choice       string `json:"choice"`
	YesCount     int    `json:"yes_count"`
	NoCount      int    `json:"no_count"`
	AbstainCount int    `json:"abstain_count"`
}

type castBallotRequest struct {
	Choice string `json:"choice"`
}

func (h *Handler) castBallot(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	var req castBallotRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteBadRequest(w, r, "invalid request body")
		return
	}
	change, err := h.svc.CastBallot(r.Context(), r.PathValue("id"), userID, req.Choice)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, ballotPayload{
		ProposalID:   change.Proposal.ID,
		Choice:       string(change.Current),
		YesCount:     change.Proposal.YesCount,
		NoCount:      change.Proposal.NoCount,
		AbstainCount: change.Proposal.AbstainCount,
	})
}

func (h *Handler) getBallot(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	ballot, err := h.svc.GetBallot(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, ballotPayload{
		ProposalID: ballot.ProposalID,
		Choice:     string(ballot.Choice),
	})
}
