package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/session"
	"go-issue-relay/internal/interfaces/rest/v1/handler"
	"go-issue-relay/internal/port/inbound"
)

func TestSnapshotHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	snapshots := &fakeSnapshots{
		issues: []event.CanonicalEvent{
			event.NewIssueEvent(event.Issue{ID: 7, Title: "Bug", State: event.StateOpened}),
		},
		commits: []event.CanonicalEvent{
			event.NewCommitEvent(event.Commit{ID: "abc", Message: "fix"}),
		},
	}
	h := handler.NewSnapshotHandler(snapshots)

	router := gin.New()
	router.Use(withSession(&session.Session{AccessToken: "user-token", ProjectID: "42"}))
	router.GET("/issues", h.Issues)
	router.GET("/commits", h.Commits)

	rec := serve(router, http.MethodGet, "/issues", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, inbound.Credentials{Token: "user-token", ProjectID: "42"}, snapshots.creds)

	var issues []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issues))
	require.Len(t, issues, 1)
	ev, _, err := event.ParseMessage(issues[0])
	require.NoError(t, err)
	assert.Equal(t, "issue:7", ev.Key())

	rec = serve(router, http.MethodGet, "/commits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var commits []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &commits))
	require.Len(t, commits, 1)
}

func TestSnapshotHandler_EmptyListIsArray(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handler.NewSnapshotHandler(&fakeSnapshots{issues: []event.CanonicalEvent{}})

	router := gin.New()
	router.GET("/issues", h.Issues)

	rec := serve(router, http.MethodGet, "/issues", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
