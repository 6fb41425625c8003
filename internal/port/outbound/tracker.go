package outbound

import (
	"context"

	"go-issue-relay/internal/infrastructure/gitlab"
)

// IssueTracker is the upstream provider API, authenticated as one user.
type IssueTracker interface {
	ListIssues(ctx context.Context, project, state string) ([]gitlab.Issue, error)
	ListCommits(ctx context.Context, project string) ([]gitlab.Commit, error)
	CloseIssue(ctx context.Context, project string, iid int64) (*gitlab.Issue, error)
	CreateIssueNote(ctx context.Context, project string, iid int64, body string) (*gitlab.Note, error)
	ListProjects(ctx context.Context) ([]gitlab.Project, error)
	CreateProjectHook(ctx context.Context, project string, options gitlab.HookOptions) (*gitlab.ProjectHook, error)
	CurrentUser(ctx context.Context) (*gitlab.User, error)
}

// TrackerFor returns the tracker API authenticated with token.
type TrackerFor func(token string) IssueTracker
