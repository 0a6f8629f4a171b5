package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProgressProbe = (*Client)(nil)

// CheckProgress looks for externally visible work by the claimant since the
// given time: a pull request cross-referencing the issue, or a commit
// authored by the claimant on the repository. The first positive signal
// short-circuits.
func (c *Client) CheckProgress(ctx context.Context, claim model.Claim, since time.Time) (model.ProgressReport, error) {
	owner, repo, err := splitRepo(claim.RepoFullName)
	if err != nil {
		return model.ProgressReport{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	prRef, details, err := c.hasPullRequestRef(ctx, owner, repo, claim, since)
	if err != nil {
		return model.ProgressReport{}, err
	}
	if prRef {
		return model.ProgressReport{HasPullRequestRef: true, Details: details}, nil
	}

	commit, details, err := c.hasRecentCommit(ctx, owner, repo, claim.Claimant, since)
	if err != nil {
		return model.ProgressReport{}, err
	}
	return model.ProgressReport{HasRecentCommit: commit, Details: details}, nil
}

// hasPullRequestRef scans the issue timeline for a pull request opened by
// the claimant that cross-references the issue after since.
func (c *Client) hasPullRequestRef(ctx context.Context, owner, repo string, claim model.Claim, since time.Time) (bool, string, error) {
	opts := &gh.ListOptions{PerPage: 100}

	for {
		events, resp, err := c.gh.Issues.ListIssueTimeline(ctx, owner, repo, claim.IssueNumber, opts)
		if err != nil {
			return false, "", fmt.Errorf("listing timeline for %s: %w", claim.IssueKey(), err)
		}
		logRateLimit(resp, claim.RepoFullName+"/timeline")

		for _, ev := range events {
			if ev.GetEvent() != "cross-referenced" {
				continue
			}
			src := ev.GetSource()
			if src == nil || src.Issue == nil || !src.Issue.IsPullRequest() {
				continue
			}
			if src.Issue.User.GetLogin() != claim.Claimant {
				continue
			}
			if src.Issue.GetCreatedAt().Time.Before(since) && src.Issue.GetUpdatedAt().Time.Before(since) {
				continue
			}
			return true, fmt.Sprintf("pull request #%d", src.Issue.GetNumber()), nil
		}

		if resp.NextPage == 0 {
			return false, "", nil
		}
		opts.Page = resp.NextPage
	}
}

// hasRecentCommit checks for any commit authored by the claimant on the
// repository's default branch since the given time.
func (c *Client) hasRecentCommit(ctx context.Context, owner, repo, username string, since time.Time) (bool, string, error) {
	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, &gh.CommitsListOptions{
		Author:      username,
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: 1},
	})
	if err != nil {
		return false, "", fmt.Errorf("listing commits by %s in %s/%s: %w", username, owner, repo, err)
	}
	logRateLimit(resp, owner+"/"+repo+"/commits")

	if len(commits) == 0 {
		return false, "", nil
	}
	return true, fmt.Sprintf("commit %s", commits[0].GetSHA()), nil
}
