package api

import (
	"github.com/gorilla/mux"

	"github.com/contentguard/contentguard/internal/api/recovery"
	"github.com/contentguard/contentguard/internal/services"
)

// NewRouter wires HTTP routes to handlers.
func NewRouter(groupSvc *services.GroupService, contentSvc *services.ContentService) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware)

	// Groups
	groups := NewGroupHandler(groupSvc)
	root.HandleFunc("/api/groups", groups.CreateGroup).Methods("POST")
	root.HandleFunc("/api/groups", groups.ListGroups).Methods("GET")
	root.HandleFunc("/api/groups/{groupId}", groups.GetGroup).Methods("GET")
	root.HandleFunc("/api/groups/{groupId}", groups.UpdateGroup).Methods("PUT")
	root.HandleFunc("/api/groups/{groupId}", groups.DeleteGroup).Methods("DELETE")

	// Assignments and membership
	root.HandleFunc("/api/groups/{groupId}/assignments", groups.AddAssignment).Methods("POST")
	root.HandleFunc("/api/groups/{groupId}/assignments/{objectType}", groups.ListAssignments).Methods("GET")
	root.HandleFunc("/api/groups/{groupId}/assignments/{objectType}", groups.RemoveAssignments).Methods("DELETE")
	root.HandleFunc("/api/groups/{groupId}/assignments/{objectType}/{objectId}", groups.RemoveAssignment).Methods("DELETE")
	root.HandleFunc("/api/groups/{groupId}/membership/{objectType}/{objectId}", groups.CheckMembership).Methods("GET")
	root.HandleFunc("/api/groups/{groupId}/members/{objectType}", groups.ListMembers).Methods("GET")

	// Content mirror
	content := NewContentHandler(contentSvc)
	root.HandleFunc("/api/content-types", content.RegisterContentType).Methods("POST")
	root.HandleFunc("/api/content-types", content.ListContentTypes).Methods("GET")
	root.HandleFunc("/api/content/posts", content.UpsertPost).Methods("PUT")
	root.HandleFunc("/api/content/terms", content.UpsertTerm).Methods("PUT")
	root.HandleFunc("/api/content/users", content.UpsertUser).Methods("PUT")
	root.HandleFunc("/api/content/roles", content.UpsertRole).Methods("PUT")
	root.HandleFunc("/api/content/links", content.LinkTerm).Methods("PUT")

	// Health
	healthHandler := NewHealthHandler()
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	return root
}
