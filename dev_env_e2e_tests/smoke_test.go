//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
//
//	Test 1: Group lifecycle + membership resolution (fast path)
//
// -----------------------------------------------------------------------------
// Creates a group via the public REST API, mirrors a small category tree,
// assigns the root category and verifies that a descendant term resolves as a
// member with a hierarchy trace. Gives a quick signal that storage, the type
// registry and the resolver are all healthy.
func TestDevEnv_GroupMembership_Smoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}

	guardSvc := env("GUARD_API", "http://localhost:8080")

	// quick connectivity check, skip if the stack isn't up
	if err := ping(guardSvc + "/api/health"); err != nil {
		t.Skipf("service %s unreachable: %v", guardSvc, err)
	}
	waitForHealthy(t, guardSvc, 30*time.Second)

	// unique ids per run so repeated runs do not collide
	base := time.Now().UnixNano() % 1_000_000
	rootTerm := 10_000_000 + base
	childTerm := rootTerm + 1

	// 1. Mirror a category tree: rootTerm -> childTerm
	putJSON(t, guardSvc+"/api/content/terms",
		fmt.Sprintf(`{"termId":%d,"taxonomy":"category"}`, rootTerm))
	putJSON(t, guardSvc+"/api/content/terms",
		fmt.Sprintf(`{"termId":%d,"taxonomy":"category","parentId":%d}`, childTerm, rootTerm))

	// 2. Create a group (unique per run) and ensure cleanup
	var groupResp struct {
		GroupID string `json:"groupId"`
	}
	gPayload := fmt.Sprintf(`{"name":"SmokeGroup-%d"}`, time.Now().UnixNano())
	resp, err := http.Post(guardSvc+"/api/groups", "application/json", bytes.NewBufferString(gPayload))
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	mustJSON(t, resp, &groupResp)
	defer func() {
		req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/groups/%s", guardSvc, groupResp.GroupID), nil)
		_, _ = http.DefaultClient.Do(req)
	}()

	// 3. Assign the root category
	aPayload := fmt.Sprintf(`{"objectType":"category","objectId":%d}`, rootTerm)
	aResp, err := http.Post(fmt.Sprintf("%s/api/groups/%s/assignments", guardSvc, groupResp.GroupID),
		"application/json", bytes.NewBufferString(aPayload))
	if err != nil {
		t.Fatalf("assign category: %v", err)
	}
	_ = aResp.Body.Close()
	if aResp.StatusCode != http.StatusCreated {
		t.Fatalf("assign category: status %d", aResp.StatusCode)
	}

	// 4. The child term must resolve as a member through the hierarchy
	var verdict struct {
		Member          bool `json:"member"`
		LockedRecursive bool `json:"lockedRecursive"`
	}
	vResp, err := http.Get(fmt.Sprintf("%s/api/groups/%s/membership/term/%d", guardSvc, groupResp.GroupID, childTerm))
	if err != nil {
		t.Fatalf("check membership: %v", err)
	}
	mustJSON(t, vResp, &verdict)
	if !verdict.Member {
		t.Fatalf("child term %d should be a member via the assigned root", childTerm)
	}
	if !verdict.LockedRecursive {
		t.Fatalf("child term %d membership should be recursive", childTerm)
	}

	// 5. Removing the assignment revokes membership
	req, _ := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/groups/%s/assignments/category/%d", guardSvc, groupResp.GroupID, rootTerm), nil)
	dResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("remove assignment: %v", err)
	}
	_ = dResp.Body.Close()

	vResp2, err := http.Get(fmt.Sprintf("%s/api/groups/%s/membership/term/%d", guardSvc, groupResp.GroupID, childTerm))
	if err != nil {
		t.Fatalf("recheck membership: %v", err)
	}
	mustJSON(t, vResp2, &verdict)
	if verdict.Member {
		t.Fatalf("child term %d should no longer be a member", childTerm)
	}
}

// putJSON issues a PUT with a JSON body and fails the test on a non-2xx status.
func putJSON(t *testing.T, url, payload string) {
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.Fatalf("PUT %s: status %d", url, resp.StatusCode)
	}
}
