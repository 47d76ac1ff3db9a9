package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentguard/contentguard/internal/config"
	"github.com/contentguard/contentguard/internal/events"
	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/registry"
	"github.com/contentguard/contentguard/internal/services"
	"github.com/contentguard/contentguard/internal/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Bootstrap(db))
	st := sqlite.New(db)

	cfg := config.NewForTesting()
	reg := registry.New(st, cfg.MaxTreeDepth)
	groupSvc := services.NewGroupService(st, reg, cfg, nil, zerolog.Nop())
	contentSvc := services.NewContentService(st, events.NewBus(16), zerolog.Nop())

	srv := httptest.NewServer(NewRouter(groupSvc, contentSvc))
	t.Cleanup(srv.Close)
	return srv
}

func makeRequest(t *testing.T, srv *httptest.Server, method, path string, body interface{}) *http.Response {
	t.Helper()
	var bodyReader *bytes.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(bodyBytes)
	} else {
		bodyReader = bytes.NewReader([]byte{})
	}

	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func parseResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAPI_HealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	BindServiceHealth(func() bool { return true })
	t.Cleanup(func() { BindServiceHealth(func() bool { return false }) })

	resp := makeRequest(t, srv, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	parseResponse(t, resp, &result)
	assert.Equal(t, "healthy", result["status"])
	assert.NotNil(t, result["timestamp"])
}

func TestAPI_GroupLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var created model.Group
	resp := makeRequest(t, srv, "POST", "/api/groups", map[string]interface{}{
		"name":        "editors",
		"description": "editorial staff",
		"ipRanges":    []string{"10.0.0.1-10.0.0.9"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	parseResponse(t, resp, &created)
	assert.NotEmpty(t, created.GroupID)
	assert.Equal(t, model.GroupTypeUserGroup, created.GroupType)

	resp = makeRequest(t, srv, "POST", "/api/groups", map[string]interface{}{"description": "nameless"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = makeRequest(t, srv, "GET", "/api/groups/"+created.GroupID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.Group
	parseResponse(t, resp, &got)
	assert.Equal(t, "editors", got.Name)

	resp = makeRequest(t, srv, "PUT", "/api/groups/"+created.GroupID, map[string]interface{}{
		"name": "reviewers", "readAccess": "all",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	parseResponse(t, resp, &got)
	assert.Equal(t, "reviewers", got.Name)
	assert.Equal(t, "all", got.ReadAccess)

	resp = makeRequest(t, srv, "GET", "/api/groups", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list map[string]interface{}
	parseResponse(t, resp, &list)
	assert.Equal(t, float64(1), list["count"])

	resp = makeRequest(t, srv, "DELETE", "/api/groups/"+created.GroupID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = makeRequest(t, srv, "GET", "/api/groups/"+created.GroupID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_AssignmentsAndMembership(t *testing.T) {
	srv := newTestServer(t)

	// mirror a small term tree: 3 → {1}
	resp := makeRequest(t, srv, "PUT", "/api/content/terms", map[string]interface{}{"termId": 3, "taxonomy": "category"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = makeRequest(t, srv, "PUT", "/api/content/terms", map[string]interface{}{"termId": 1, "taxonomy": "category", "parentId": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var g model.Group
	resp = makeRequest(t, srv, "POST", "/api/groups", map[string]interface{}{"name": "editors"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	parseResponse(t, resp, &g)

	resp = makeRequest(t, srv, "POST", "/api/groups/"+g.GroupID+"/assignments", map[string]interface{}{
		"objectType": "category", "objectId": 3,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// unknown object types are rejected on mutation
	resp = makeRequest(t, srv, "POST", "/api/groups/"+g.GroupID+"/assignments", map[string]interface{}{
		"objectType": "widget", "objectId": 3,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	var verdict services.MembershipVerdict
	resp = makeRequest(t, srv, "GET", "/api/groups/"+g.GroupID+"/membership/term/1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	parseResponse(t, resp, &verdict)
	assert.True(t, verdict.Member)
	assert.True(t, verdict.LockedRecursive)
	assert.Contains(t, verdict.Trace, model.KindTerm)

	// queries on unknown types fail closed instead of erroring
	resp = makeRequest(t, srv, "GET", "/api/groups/"+g.GroupID+"/membership/widget/1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	parseResponse(t, resp, &verdict)
	assert.False(t, verdict.Member)

	var members map[string]interface{}
	resp = makeRequest(t, srv, "GET", "/api/groups/"+g.GroupID+"/members/term", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	parseResponse(t, resp, &members)
	assert.Equal(t, float64(2), members["count"])

	var assignments map[string]interface{}
	resp = makeRequest(t, srv, "GET", "/api/groups/"+g.GroupID+"/assignments/category", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	parseResponse(t, resp, &assignments)
	assert.Equal(t, float64(1), assignments["count"])

	resp = makeRequest(t, srv, "DELETE", "/api/groups/"+g.GroupID+"/assignments/category/3", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// removing again matches zero rows
	resp = makeRequest(t, srv, "DELETE", "/api/groups/"+g.GroupID+"/assignments/category/3", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_ContentTypes(t *testing.T) {
	srv := newTestServer(t)

	resp := makeRequest(t, srv, "POST", "/api/content-types", map[string]interface{}{
		"name": "product", "kind": "post",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = makeRequest(t, srv, "POST", "/api/content-types", map[string]interface{}{
		"name": "product", "kind": "banana",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	var list map[string]interface{}
	resp = makeRequest(t, srv, "GET", "/api/content-types?kind=post", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	parseResponse(t, resp, &list)
	assert.Equal(t, float64(1), list["count"])
}

func TestAPI_UserMirrorAndMembership(t *testing.T) {
	srv := newTestServer(t)

	resp := makeRequest(t, srv, "PUT", "/api/content/roles", map[string]interface{}{"roleId": 1, "name": "editor"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = makeRequest(t, srv, "PUT", "/api/content/users", map[string]interface{}{
		"userId": 7, "login": "alice", "roleIds": []int64{1},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var g model.Group
	resp = makeRequest(t, srv, "POST", "/api/groups", map[string]interface{}{"name": "staff"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	parseResponse(t, resp, &g)

	resp = makeRequest(t, srv, "POST", "/api/groups/"+g.GroupID+"/assignments", map[string]interface{}{
		"objectType": "role", "objectId": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var verdict services.MembershipVerdict
	resp = makeRequest(t, srv, "GET", "/api/groups/"+g.GroupID+"/membership/user/7", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	parseResponse(t, resp, &verdict)
	assert.True(t, verdict.Member)
	assert.Contains(t, verdict.Trace, model.KindRole)
}
