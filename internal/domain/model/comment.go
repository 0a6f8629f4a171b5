package model

import (
	"fmt"
	"time"
)

// Commenter identifies the author of a comment.
type Commenter struct {
	Username string
	UserID   int64
}

// CommentEvent is an inbound issue comment delivered by the upstream
// ingester. Delivery is at-least-once; handling must be idempotent on
// CommentID. ReplyToMaintainer is computed by the ingester, which has the
// comment thread context this core does not.
type CommentEvent struct {
	CommentID         int64
	RepoFullName      string
	RepoOwner         string
	IssueNumber       int
	IssueID           int64
	IssueAuthor       string
	Assignees         []string
	Commenter         Commenter
	Body              string
	ReplyToMaintainer bool
	CreatedAt         time.Time
}

// IssueKey returns the per-issue lock scope for this event.
func (e CommentEvent) IssueKey() string {
	return IssueKey(e.RepoFullName, e.IssueNumber)
}

// IsCommenterAssigned reports whether the comment author is already an
// assignee of the issue.
func (e CommentEvent) IsCommenterAssigned() bool {
	for _, a := range e.Assignees {
		if a == e.Commenter.Username {
			return true
		}
	}
	return false
}

// QueuedEvent is a comment event with its queue identity attached.
type QueuedEvent struct {
	ID    int64
	Event CommentEvent
}

// IssueKey builds the canonical "owner/repo#number" issue key.
func IssueKey(repoFullName string, issueNumber int) string {
	return fmt.Sprintf("%s#%d", repoFullName, issueNumber)
}
