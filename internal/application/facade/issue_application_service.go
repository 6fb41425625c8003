package facade

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go-issue-relay/internal/infrastructure/gitlab"
	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/port/inbound"
	"go-issue-relay/internal/port/outbound"
)

// WebhookSettings describe the hook RegisterWebhook installs.
type WebhookSettings struct {
	// PublicURL is where the provider reaches this relay.
	PublicURL string
	Secret    string
}

type IssueApplicationService struct {
	trackerFor     outbound.TrackerFor
	defaultProject string
	webhook        WebhookSettings
	logger         logger.Logger
}

var _ inbound.IssueUseCase = (*IssueApplicationService)(nil)

func NewIssueApplicationService(
	trackerFor outbound.TrackerFor,
	defaultProject string,
	webhook WebhookSettings,
	logger logger.Logger,
) *IssueApplicationService {
	return &IssueApplicationService{
		trackerFor:     trackerFor,
		defaultProject: defaultProject,
		webhook:        webhook,
		logger:         logger.WithField("component", "issues"),
	}
}

func (s *IssueApplicationService) CloseIssue(ctx context.Context, creds inbound.Credentials, issueID int64) (*gitlab.Issue, error) {
	tracker, project, err := s.authorize(creds)
	if err != nil {
		return nil, err
	}

	issue, err := s.findIssue(ctx, tracker, project, issueID)
	if err != nil {
		return nil, err
	}

	closed, err := tracker.CloseIssue(ctx, project, issue.IID)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Closed issue %d (iid %d) of project %s", issueID, issue.IID, project)
	return closed, nil
}

func (s *IssueApplicationService) CommentOnIssue(ctx context.Context, creds inbound.Credentials, issueID int64, comment string) (*gitlab.Note, error) {
	tracker, project, err := s.authorize(creds)
	if err != nil {
		return nil, err
	}

	if n := utf8.RuneCountInString(comment); n == 0 || n > inbound.MaxCommentLength {
		return nil, fmt.Errorf("%w: length must be between 1 and %d characters", inbound.ErrInvalidComment, inbound.MaxCommentLength)
	}

	issue, err := s.findIssue(ctx, tracker, project, issueID)
	if err != nil {
		return nil, err
	}

	return tracker.CreateIssueNote(ctx, project, issue.IID, comment)
}

func (s *IssueApplicationService) ListProjects(ctx context.Context, creds inbound.Credentials) ([]gitlab.Project, error) {
	if creds.Token == "" {
		return nil, inbound.ErrUnauthenticated
	}
	return s.trackerFor(creds.Token).ListProjects(ctx)
}

func (s *IssueApplicationService) RegisterWebhook(ctx context.Context, creds inbound.Credentials, projectID string) (*gitlab.ProjectHook, error) {
	if creds.Token == "" {
		return nil, inbound.ErrUnauthenticated
	}
	if projectID == "" {
		return nil, inbound.ErrNoProject
	}

	hookURL := strings.TrimRight(s.webhook.PublicURL, "/") + "/webhook"
	hook, err := s.trackerFor(creds.Token).CreateProjectHook(ctx, projectID, gitlab.HookOptions{
		URL:                   hookURL,
		Token:                 s.webhook.Secret,
		IssuesEvents:          true,
		PushEvents:            true,
		EnableSSLVerification: strings.HasPrefix(hookURL, "https://"),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Registered webhook %d on project %s", hook.ID, projectID)
	return hook, nil
}

// authorize requires a signed-in user and resolves the project to act on.
func (s *IssueApplicationService) authorize(creds inbound.Credentials) (outbound.IssueTracker, string, error) {
	if creds.Token == "" {
		return nil, "", inbound.ErrUnauthenticated
	}

	project := creds.ProjectID
	if project == "" {
		project = s.defaultProject
	}
	if project == "" {
		return nil, "", inbound.ErrNoProject
	}

	return s.trackerFor(creds.Token), project, nil
}

// findIssue locates an issue by its global id. Clients only know the
// global id; the provider addresses issues by project-scoped iid.
func (s *IssueApplicationService) findIssue(ctx context.Context, tracker outbound.IssueTracker, project string, issueID int64) (*gitlab.Issue, error) {
	issues, err := tracker.ListIssues(ctx, project, gitlab.IssueStateAll)
	if err != nil {
		return nil, err
	}

	for i := range issues {
		if issues[i].ID == issueID {
			return &issues[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d in project %s", inbound.ErrIssueNotFound, issueID, project)
}
