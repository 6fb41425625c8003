package gitlab

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ListCommits returns the most recent commits on the project's default
// branch, newest first.
func (client *Client) ListCommits(ctx context.Context, project string) ([]Commit, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(defaultPerPage))

	var commits []Commit
	if err := client.get(ctx, withQuery(projectPath(project)+"/repository/commits", query), &commits); err != nil {
		return nil, fmt.Errorf("listing commits of project %s: %w", project, err)
	}
	return commits, nil
}
