// Package github implements the Notifier, IssueMutator, and ProgressProbe
// ports using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Notifier     = (*Client)(nil)
	_ driven.IssueMutator = (*Client)(nil)
)

// callTimeout bounds each outbound API call. Notifications are best-effort;
// a slow remote must not stall the escalation loop.
const callTimeout = 10 * time.Second

// Client implements the outbound GitHub ports.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport
// stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// SendNudge posts a reminder comment on the claimed issue.
func (c *Client) SendNudge(ctx context.Context, claim model.Claim) error {
	body := fmt.Sprintf(
		"@%s, checking in on this issue. You claimed it a while back and we have not "+
			"seen linked activity since. Still working on it? A quick status comment or a "+
			"draft PR resets the inactivity timer; otherwise the claim will be released so "+
			"others can pick it up.",
		claim.Claimant,
	)
	return c.postComment(ctx, claim.RepoFullName, claim.IssueNumber, body)
}

// SendAutoRelease posts a comment informing the claimant the claim was
// released.
func (c *Client) SendAutoRelease(ctx context.Context, claim model.Claim, reason string) error {
	body := fmt.Sprintf(
		"@%s, this claim has been automatically released (%s). No hard feelings — the "+
			"issue is open for anyone to pick up again, including you.",
		claim.Claimant, reasonText(reason),
	)
	return c.postComment(ctx, claim.RepoFullName, claim.IssueNumber, body)
}

// NotifyMaintainer surfaces an escalation event on the issue for the
// repository's maintainers.
func (c *Client) NotifyMaintainer(ctx context.Context, repoFullName string, event string, claim model.Claim) error {
	body := fmt.Sprintf(
		"Maintainer note: claim by @%s on this issue was %s after %d nudge(s) without "+
			"detected progress. The issue is unassigned and available again.",
		claim.Claimant, event, claim.NudgeCount,
	)
	return c.postComment(ctx, repoFullName, claim.IssueNumber, body)
}

// Unassign removes the user from the issue's assignees. Best-effort: the
// caller logs failures and moves on.
func (c *Client) Unassign(ctx context.Context, repoFullName string, issueNumber int, username string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, resp, err := c.gh.Issues.RemoveAssignees(ctx, owner, repo, issueNumber, []string{username})
	if err != nil {
		return fmt.Errorf("unassigning %s from %s#%d: %w", username, repoFullName, issueNumber, err)
	}
	logRateLimit(resp, repoFullName+"/unassign")
	return nil
}

func (c *Client) postComment(ctx context.Context, repoFullName string, issueNumber int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, resp, err := c.gh.Issues.CreateComment(ctx, owner, repo, issueNumber, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("creating issue comment on %s#%d: %w", repoFullName, issueNumber, err)
	}
	logRateLimit(resp, repoFullName+"/comment")
	return nil
}

func reasonText(reason string) string {
	switch reason {
	case model.ReleaseReasonMaxNudges:
		return "no progress detected after the reminder limit"
	case model.ReleaseReasonManual:
		return "released by a maintainer"
	default:
		return reason
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
