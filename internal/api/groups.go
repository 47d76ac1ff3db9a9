// Package api provides the HTTP transport for the access-control service.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/contentguard/contentguard/internal/api/respond"
	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/services"
)

// GroupHandler provides HTTP transport for group and membership operations.
type GroupHandler struct {
	groups *services.GroupService
}

func NewGroupHandler(svc *services.GroupService) *GroupHandler {
	return &GroupHandler{groups: svc}
}

// CreateGroup POST /api/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID     string   `json:"groupId"`
		GroupType   string   `json:"groupType"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		ReadAccess  string   `json:"readAccess"`
		WriteAccess string   `json:"writeAccess"`
		IPRanges    []string `json:"ipRanges"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	g := &model.Group{
		GroupID:     req.GroupID,
		GroupType:   req.GroupType,
		Name:        req.Name,
		Description: req.Description,
		ReadAccess:  req.ReadAccess,
		WriteAccess: req.WriteAccess,
	}
	g.SetIPRanges(req.IPRanges)
	created, err := h.groups.CreateGroup(r.Context(), g)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, created)
}

// ListGroups GET /api/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListGroups(r.Context())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"groups": groups, "count": len(groups)})
}

// GetGroup GET /api/groups/{groupId}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.GetGroup(r.Context(), mux.Vars(r)["groupId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, g)
}

// UpdateGroup PUT /api/groups/{groupId}
func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		ReadAccess  string   `json:"readAccess"`
		WriteAccess string   `json:"writeAccess"`
		IPRanges    []string `json:"ipRanges"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	g, err := h.groups.GetGroup(r.Context(), groupID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	g.Name = req.Name
	g.Description = req.Description
	if req.ReadAccess != "" {
		g.ReadAccess = req.ReadAccess
	}
	if req.WriteAccess != "" {
		g.WriteAccess = req.WriteAccess
	}
	g.SetIPRanges(req.IPRanges)
	updated, err := h.groups.UpdateGroup(r.Context(), g)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, updated)
}

// DeleteGroup DELETE /api/groups/{groupId}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.groups.DeleteGroup(r.Context(), mux.Vars(r)["groupId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddAssignment POST /api/groups/{groupId}/assignments
func (h *GroupHandler) AddAssignment(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	var req struct {
		ObjectType string     `json:"objectType"`
		ObjectID   int64      `json:"objectId"`
		FromDate   *time.Time `json:"fromDate"`
		ToDate     *time.Time `json:"toDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.ObjectType == "" {
		respond.WriteBadRequest(w, "objectType is required")
		return
	}
	if err := h.groups.AddAssignment(r.Context(), groupID, req.ObjectType, req.ObjectID, req.FromDate, req.ToDate); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// RemoveAssignments DELETE /api/groups/{groupId}/assignments/{objectType}
// removes every assignment of the type.
func (h *GroupHandler) RemoveAssignments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.groups.RemoveAssignment(r.Context(), vars["groupId"], vars["objectType"], nil); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveAssignment DELETE /api/groups/{groupId}/assignments/{objectType}/{objectId}
func (h *GroupHandler) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	objectID, err := strconv.ParseInt(vars["objectId"], 10, 64)
	if err != nil {
		respond.WriteBadRequest(w, "invalid objectId")
		return
	}
	if err := h.groups.RemoveAssignment(r.Context(), vars["groupId"], vars["objectType"], &objectID); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAssignments GET /api/groups/{groupId}/assignments/{objectType}
func (h *GroupHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assigned, err := h.groups.ListAssignedByType(r.Context(), vars["groupId"], vars["objectType"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"assignments": assigned, "count": len(assigned)})
}

// CheckMembership GET /api/groups/{groupId}/membership/{objectType}/{objectId}
func (h *GroupHandler) CheckMembership(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	objectID, err := strconv.ParseInt(vars["objectId"], 10, 64)
	if err != nil {
		respond.WriteBadRequest(w, "invalid objectId")
		return
	}
	verdict, err := h.groups.CheckMembership(r.Context(), vars["groupId"], vars["objectType"], objectID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, verdict)
}

// ListMembers GET /api/groups/{groupId}/members/{objectType}
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	members, err := h.groups.ListMembers(r.Context(), vars["groupId"], vars["objectType"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"members": members, "count": len(members)})
}
