package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Issue states accepted by ListIssues.
const (
	IssueStateOpened = "opened"
	IssueStateClosed = "closed"
	IssueStateAll    = "all"
)

// ListIssues returns every issue of a project in the given state,
// following pagination to the last page. An empty state lists all issues.
func (client *Client) ListIssues(ctx context.Context, project, state string) ([]Issue, error) {
	query := url.Values{}
	if state != "" {
		query.Set("state", state)
	}

	issues, err := collectPages[Issue](ctx, client, projectPath(project)+"/issues", query)
	if err != nil {
		return nil, fmt.Errorf("listing issues of project %s: %w", project, err)
	}
	return issues, nil
}

// CloseIssue closes the issue with the given project-scoped iid.
func (client *Client) CloseIssue(ctx context.Context, project string, iid int64) (*Issue, error) {
	var issue Issue
	path := fmt.Sprintf("%s/issues/%d", projectPath(project), iid)
	request := map[string]string{"state_event": "close"}
	if err := client.send(ctx, http.MethodPut, path, request, &issue); err != nil {
		return nil, fmt.Errorf("closing issue %d of project %s: %w", iid, project, err)
	}
	return &issue, nil
}

// CreateIssueNote adds a comment to the issue with the given iid.
func (client *Client) CreateIssueNote(ctx context.Context, project string, iid int64, body string) (*Note, error) {
	var note Note
	path := fmt.Sprintf("%s/issues/%d/notes", projectPath(project), iid)
	request := map[string]string{"body": body}
	if err := client.send(ctx, http.MethodPost, path, request, &note); err != nil {
		return nil, fmt.Errorf("commenting on issue %d of project %s: %w", iid, project, err)
	}
	return &note, nil
}
