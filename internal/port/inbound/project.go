package inbound

import (
	"context"
	"errors"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/gitlab"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrIssueNotFound   = errors.New("issue not found")
	ErrInvalidComment  = errors.New("invalid comment")
	ErrNoProject       = errors.New("no project selected")
)

// MaxCommentLength bounds the comment body accepted by CommentOnIssue.
const MaxCommentLength = 1000

// Credentials select whose token and which project a request acts on.
// Token is empty for anonymous requests.
type Credentials struct {
	Token     string
	ProjectID string
}

// SnapshotUseCase serves the full current lists clients seed from.
type SnapshotUseCase interface {
	// OpenIssues never fails: upstream errors yield an empty list.
	OpenIssues(ctx context.Context, creds Credentials) []event.CanonicalEvent
	// RecentCommits never fails: upstream errors yield an empty list.
	RecentCommits(ctx context.Context, creds Credentials) []event.CanonicalEvent
}

// IssueUseCase covers the signed-in control actions.
type IssueUseCase interface {
	CloseIssue(ctx context.Context, creds Credentials, issueID int64) (*gitlab.Issue, error)
	CommentOnIssue(ctx context.Context, creds Credentials, issueID int64, comment string) (*gitlab.Note, error)
	ListProjects(ctx context.Context, creds Credentials) ([]gitlab.Project, error)
	RegisterWebhook(ctx context.Context, creds Credentials, projectID string) (*gitlab.ProjectHook, error)
}
