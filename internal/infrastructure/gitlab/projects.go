package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// HookOptions configures a project webhook.
type HookOptions struct {
	URL                   string `json:"url"`
	Token                 string `json:"token,omitempty"`
	IssuesEvents          bool   `json:"issues_events"`
	PushEvents            bool   `json:"push_events"`
	EnableSSLVerification bool   `json:"enable_ssl_verification"`
}

// ListProjects returns projects the authenticated user is a member of.
func (client *Client) ListProjects(ctx context.Context) ([]Project, error) {
	query := url.Values{}
	query.Set("membership", "true")
	query.Set("simple", "true")
	query.Set("order_by", "last_activity_at")
	query.Set("per_page", strconv.Itoa(defaultPerPage))

	var projects []Project
	if err := client.get(ctx, withQuery("/projects", query), &projects); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// CreateProjectHook registers a webhook on a project.
func (client *Client) CreateProjectHook(ctx context.Context, project string, options HookOptions) (*ProjectHook, error) {
	var hook ProjectHook
	if err := client.send(ctx, http.MethodPost, projectPath(project)+"/hooks", options, &hook); err != nil {
		return nil, fmt.Errorf("creating webhook on project %s: %w", project, err)
	}
	return &hook, nil
}

// CurrentUser returns the user the client's token belongs to.
func (client *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := client.get(ctx, "/user", &user); err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return &user, nil
}
