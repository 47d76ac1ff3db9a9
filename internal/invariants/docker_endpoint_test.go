//go:build invariants
// +build invariants

//
// 🐳 DOCKER ENDPOINT INVARIANT TESTS
// ⚠️  These tests run against the Docker-based guard service
// 🛡️  Tests system invariants using the containerized service
// 📋  Separate from build tests - for Docker environment validation
//

package invariants

import (
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func endpointURL() string {
	if v := os.Getenv("GUARD_ENDPOINT"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// TestDockerEndpointAvailability verifies the Docker service is running and accessible
func TestDockerEndpointAvailability(t *testing.T) {
	baseURL := endpointURL()

	resp, err := http.Get(baseURL + "/api/health")
	if err != nil {
		t.Fatalf("Docker service not accessible: %v\n"+
			"Make sure to run: docker-compose up -d", err)
	}
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode,
		"Docker service health check failed")
}

// TestServiceInvariants runs the full invariant suite against the service.
func TestServiceInvariants(t *testing.T) {
	baseURL := endpointURL()
	checker := NewInvariantChecker(baseURL)

	// Ensure service is running
	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode,
		"Guard service must be running. Run: docker-compose up -d")
	resp.Body.Close()

	t.Run("UnknownTypeHandling", checker.TestUnknownTypeHandlingInvariant)
	t.Run("MembershipEnumerationAgreement", checker.TestMembershipEnumerationAgreementInvariant)
	t.Run("MutationVisibility", checker.TestMutationVisibilityInvariant)
	t.Run("GroupDeletion", checker.TestGroupDeletionInvariant)
}
