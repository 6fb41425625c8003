package facade

import (
	"context"
	"time"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/gitlab"
	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/port/inbound"
	"go-issue-relay/internal/port/outbound"
)

// SnapshotApplicationService reads the current issue and commit lists from
// the provider. Anonymous requests use the configured default credentials.
type SnapshotApplicationService struct {
	trackerFor outbound.TrackerFor
	defaults   inbound.Credentials
	logger     logger.Logger
}

var _ inbound.SnapshotUseCase = (*SnapshotApplicationService)(nil)

func NewSnapshotApplicationService(
	trackerFor outbound.TrackerFor,
	defaults inbound.Credentials,
	logger logger.Logger,
) *SnapshotApplicationService {
	return &SnapshotApplicationService{
		trackerFor: trackerFor,
		defaults:   defaults,
		logger:     logger.WithField("component", "snapshot"),
	}
}

func (s *SnapshotApplicationService) OpenIssues(ctx context.Context, creds inbound.Credentials) []event.CanonicalEvent {
	token, project := s.resolve(creds)
	if project == "" {
		s.logger.Warn("No project configured, returning empty issue list")
		return []event.CanonicalEvent{}
	}

	issues, err := s.trackerFor(token).ListIssues(ctx, project, gitlab.IssueStateOpened)
	if err != nil {
		s.logger.Warnf("Failed to fetch issues of project %s: %v", project, err)
		return []event.CanonicalEvent{}
	}

	result := make([]event.CanonicalEvent, 0, len(issues))
	for _, issue := range issues {
		if issue.State != gitlab.IssueStateOpened {
			continue
		}
		result = append(result, IssueEvent(issue))
	}
	return result
}

func (s *SnapshotApplicationService) RecentCommits(ctx context.Context, creds inbound.Credentials) []event.CanonicalEvent {
	token, project := s.resolve(creds)
	if project == "" {
		s.logger.Warn("No project configured, returning empty commit list")
		return []event.CanonicalEvent{}
	}

	commits, err := s.trackerFor(token).ListCommits(ctx, project)
	if err != nil {
		s.logger.Warnf("Failed to fetch commits of project %s: %v", project, err)
		return []event.CanonicalEvent{}
	}

	result := make([]event.CanonicalEvent, 0, len(commits))
	for _, commit := range commits {
		result = append(result, CommitEvent(commit))
	}
	return result
}

func (s *SnapshotApplicationService) resolve(creds inbound.Credentials) (token, project string) {
	token, project = creds.Token, creds.ProjectID
	if token == "" {
		token = s.defaults.Token
	}
	if project == "" {
		project = s.defaults.ProjectID
	}
	return token, project
}

// IssueEvent converts a provider issue into the relay's wire record.
func IssueEvent(issue gitlab.Issue) event.CanonicalEvent {
	return event.NewIssueEvent(event.Issue{
		ID:        issue.ID,
		IID:       issue.IID,
		ProjectID: issue.ProjectID,
		Title:     issue.Title,
		RawState:  issue.State,
		CreatedAt: formatTime(issue.CreatedAt),
		UpdatedAt: formatTime(issue.UpdatedAt),
		URL:       issue.WebURL,
	})
}

// CommitEvent converts a provider commit into the relay's wire record.
func CommitEvent(commit gitlab.Commit) event.CanonicalEvent {
	return event.NewCommitEvent(event.Commit{
		ID:         commit.ID,
		Message:    commit.Message,
		AuthorName: commit.AuthorName,
		Timestamp:  formatTime(commit.CreatedAt),
		URL:        commit.WebURL,
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
