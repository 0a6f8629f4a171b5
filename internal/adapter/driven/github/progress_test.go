package github_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timelineJSON(event, author, createdAt string, pullRequest bool) string {
	pr := ""
	if pullRequest {
		pr = `"pull_request": {"url": "https://api.github.com/repos/acme/widgets/pulls/7"},`
	}
	return fmt.Sprintf(`{
		"event": %q,
		"source": {
			"type": "issue",
			"issue": {
				"number": 7,
				%s
				"user": {"login": %q},
				"created_at": %q,
				"updated_at": %q
			}
		}
	}`, event, pr, author, createdAt, createdAt)
}

func TestCheckProgressFindsPullRequestRef(t *testing.T) {
	recent := time.Now().UTC().Format(time.RFC3339)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues/42/timeline", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, "[%s]", timelineJSON("cross-referenced", "alice", recent, true))
	})

	client := newTestClient(t, mux)
	report, err := client.CheckProgress(context.Background(), testClaim(), time.Now().UTC().Add(-7*24*time.Hour))
	require.NoError(t, err)

	assert.True(t, report.HasPullRequestRef)
	assert.True(t, report.Found())
	assert.Equal(t, "pull request #7", report.Details)
}

func TestCheckProgressIgnoresForeignAndStaleRefs(t *testing.T) {
	stale := time.Now().UTC().Add(-30 * 24 * time.Hour).Format(time.RFC3339)
	recent := time.Now().UTC().Format(time.RFC3339)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues/42/timeline", func(w http.ResponseWriter, _ *http.Request) {
		// Another contributor's PR, the claimant's stale PR, a plain issue
		// reference by the claimant: none qualify.
		_, _ = fmt.Fprintf(w, "[%s,%s,%s]",
			timelineJSON("cross-referenced", "bob", recent, true),
			timelineJSON("cross-referenced", "alice", stale, true),
			timelineJSON("cross-referenced", "alice", recent, false),
		)
	})
	mux.HandleFunc("GET /repos/acme/widgets/commits", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	client := newTestClient(t, mux)
	report, err := client.CheckProgress(context.Background(), testClaim(), time.Now().UTC().Add(-7*24*time.Hour))
	require.NoError(t, err)

	assert.False(t, report.Found())
}

func TestCheckProgressFallsBackToCommits(t *testing.T) {
	var gotAuthor string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues/42/timeline", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /repos/acme/widgets/commits", func(w http.ResponseWriter, r *http.Request) {
		gotAuthor = r.URL.Query().Get("author")
		_, _ = w.Write([]byte(`[{"sha": "abc1234"}]`))
	})

	client := newTestClient(t, mux)
	report, err := client.CheckProgress(context.Background(), testClaim(), time.Now().UTC().Add(-7*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "alice", gotAuthor)
	assert.True(t, report.HasRecentCommit)
	assert.False(t, report.HasPullRequestRef)
	assert.Equal(t, "commit abc1234", report.Details)
}

func TestCheckProgressPropagatesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues/42/timeline", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusBadGateway)
	})

	client := newTestClient(t, mux)
	_, err := client.CheckProgress(context.Background(), testClaim(), time.Now().UTC())
	assert.Error(t, err)
}
