package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/Auankj/decode/internal/adapter/driven/github"
	"github.com/Auankj/decode/internal/domain/model"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/")
	require.NoError(t, err)

	return client
}

func testClaim() model.Claim {
	return model.Claim{
		ID:             7,
		RepoFullName:   "acme/widgets",
		IssueNumber:    42,
		Claimant:       "alice",
		Status:         model.ClaimStatusActive,
		NudgeCount:     1,
		ClaimedAt:      time.Now().UTC().Add(-14 * 24 * time.Hour),
		LastActivityAt: time.Now().UTC().Add(-8 * 24 * time.Hour),
	}
}

func TestSendNudgePostsComment(t *testing.T) {
	var gotPath, gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/issues/42/comments", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var payload struct {
			Body string `json:"body"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotBody = payload.Body

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1}`))
	})

	client := newTestClient(t, mux)
	require.NoError(t, client.SendNudge(context.Background(), testClaim()))

	assert.Equal(t, "/repos/acme/widgets/issues/42/comments", gotPath)
	assert.Contains(t, gotBody, "@alice")
	assert.Contains(t, gotBody, "resets the inactivity timer")
}

func TestSendAutoReleaseMentionsReason(t *testing.T) {
	var gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/issues/42/comments", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Body string `json:"body"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotBody = payload.Body

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 2}`))
	})

	client := newTestClient(t, mux)
	require.NoError(t, client.SendAutoRelease(context.Background(), testClaim(), model.ReleaseReasonMaxNudges))

	assert.Contains(t, gotBody, "@alice")
	assert.Contains(t, gotBody, "no progress detected after the reminder limit")
}

func TestUnassignRemovesAssignee(t *testing.T) {
	var gotAssignees []string
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /repos/acme/widgets/issues/42/assignees", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Assignees []string `json:"assignees"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotAssignees = payload.Assignees

		_, _ = w.Write([]byte(`{"number": 42}`))
	})

	client := newTestClient(t, mux)
	require.NoError(t, client.Unassign(context.Background(), "acme/widgets", 42, "alice"))

	assert.Equal(t, []string{"alice"}, gotAssignees)
}

func TestUnassignRejectsBadRepoName(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	err := client.Unassign(context.Background(), "not-a-full-name", 42, "alice")
	assert.Error(t, err)
}

func TestPostCommentServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/issues/42/comments", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusBadGateway)
	})

	client := newTestClient(t, mux)
	err := client.SendNudge(context.Background(), testClaim())
	assert.Error(t, err)
}
