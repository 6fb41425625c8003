package facade_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-issue-relay/internal/application/facade"
	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/gitlab"
	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/port/inbound"
)

func TestOpenIssues_FiltersAndConverts(t *testing.T) {
	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	tracker := &fakeTracker{issues: []gitlab.Issue{
		{ID: 1, IID: 1, Title: "open", State: "opened", WebURL: "https://x/1", CreatedAt: created},
		{ID: 2, IID: 2, Title: "closed", State: "closed"},
	}}
	svc := facade.NewSnapshotApplicationService(tracker.For, inbound.Credentials{Token: "default", ProjectID: "42"}, logger.NewNop())

	issues := svc.OpenIssues(context.Background(), inbound.Credentials{})
	require.Len(t, issues, 1)

	issue, ok := issues[0].Issue()
	require.True(t, ok)
	assert.Equal(t, int64(1), issue.ID)
	assert.Equal(t, event.StateOpened, issue.State)
	assert.Equal(t, "https://x/1", issue.URL)
	assert.Equal(t, "2025-05-01T10:00:00Z", issue.CreatedAt)

	assert.Equal(t, "default", tracker.token)
	assert.Equal(t, []string{"42"}, tracker.queried)
}

func TestOpenIssues_SessionCredentialsWin(t *testing.T) {
	tracker := &fakeTracker{}
	svc := facade.NewSnapshotApplicationService(tracker.For, inbound.Credentials{Token: "default", ProjectID: "42"}, logger.NewNop())

	svc.OpenIssues(context.Background(), inbound.Credentials{Token: "user", ProjectID: "7"})

	assert.Equal(t, "user", tracker.token)
	assert.Equal(t, []string{"7"}, tracker.queried)
}

func TestSnapshot_UpstreamFailureYieldsEmptyList(t *testing.T) {
	tracker := &fakeTracker{err: errUpstream}
	svc := facade.NewSnapshotApplicationService(tracker.For, inbound.Credentials{ProjectID: "42"}, logger.NewNop())

	issues := svc.OpenIssues(context.Background(), inbound.Credentials{})
	assert.NotNil(t, issues)
	assert.Empty(t, issues)

	commits := svc.RecentCommits(context.Background(), inbound.Credentials{})
	assert.NotNil(t, commits)
	assert.Empty(t, commits)
}

func TestRecentCommits(t *testing.T) {
	tracker := &fakeTracker{commits: []gitlab.Commit{
		{ID: "b", Message: "second", AuthorName: "dev", WebURL: "https://x/b"},
		{ID: "a", Message: "first", AuthorName: "dev"},
	}}
	svc := facade.NewSnapshotApplicationService(tracker.For, inbound.Credentials{ProjectID: "42"}, logger.NewNop())

	commits := svc.RecentCommits(context.Background(), inbound.Credentials{})
	require.Len(t, commits, 2)
	assert.Equal(t, "b", commits[0].ID())
	commit, _ := commits[0].Commit()
	assert.Equal(t, "https://x/b", commit.URL)
	assert.Equal(t, "", commit.Timestamp)
}
