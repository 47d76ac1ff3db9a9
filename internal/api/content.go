package api

import (
	"encoding/json"
	"net/http"

	"github.com/contentguard/contentguard/internal/api/respond"
	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/services"
)

// ContentHandler ingests the host environment's content mirror.
type ContentHandler struct {
	content *services.ContentService
}

func NewContentHandler(svc *services.ContentService) *ContentHandler {
	return &ContentHandler{content: svc}
}

// RegisterContentType POST /api/content-types
func (h *ContentHandler) RegisterContentType(w http.ResponseWriter, r *http.Request) {
	var ct model.ContentType
	if err := json.NewDecoder(r.Body).Decode(&ct); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.content.RegisterContentType(r.Context(), ct); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, ct)
}

// ListContentTypes GET /api/content-types?kind=
func (h *ContentHandler) ListContentTypes(w http.ResponseWriter, r *http.Request) {
	cts, err := h.content.ListContentTypes(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"contentTypes": cts, "count": len(cts)})
}

// UpsertPost PUT /api/content/posts
func (h *ContentHandler) UpsertPost(w http.ResponseWriter, r *http.Request) {
	var p model.HostPost
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.content.UpsertPost(r.Context(), &p); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// UpsertTerm PUT /api/content/terms
func (h *ContentHandler) UpsertTerm(w http.ResponseWriter, r *http.Request) {
	var t model.HostTerm
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.content.UpsertTerm(r.Context(), &t); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, t)
}

// UpsertUser PUT /api/content/users
func (h *ContentHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var u model.HostUser
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.content.UpsertUser(r.Context(), &u); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}

// UpsertRole PUT /api/content/roles
func (h *ContentHandler) UpsertRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoleID int64  `json:"roleId"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.content.UpsertRole(r.Context(), req.RoleID, req.Name); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, req)
}

// LinkTerm PUT /api/content/links
func (h *ContentHandler) LinkTerm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectID int64 `json:"objectId"`
		TermID   int64 `json:"termId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.content.LinkTerm(r.Context(), req.ObjectID, req.TermID); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, req)
}
