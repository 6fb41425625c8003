package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-issue-relay/internal/infrastructure/gitlab"
	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/infrastructure/session"
	"go-issue-relay/internal/interfaces/rest/v1/handler"
	"go-issue-relay/internal/port/inbound"
)

func newIssueRouter(issues *fakeIssues, sessions *fakeSessions, sess *session.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewIssueHandler(issues, sessions, logger.NewNop())

	router := gin.New()
	router.Use(withSession(sess))
	router.POST("/issues/:id/close", h.Close)
	router.POST("/issues/:id/comments", h.Comment)
	router.GET("/projects", h.Projects)
	router.POST("/projects/:id/webhook", h.RegisterWebhook)
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIssueHandler_Close(t *testing.T) {
	issues := &fakeIssues{}
	sess := &session.Session{ID: "s", AccessToken: "user-token", ProjectID: "42"}
	router := newIssueRouter(issues, &fakeSessions{}, sess)

	rec := serve(router, http.MethodPost, "/issues/7/close", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7}, issues.closed)
	assert.Equal(t, inbound.Credentials{Token: "user-token", ProjectID: "42"}, issues.creds)
}

func TestIssueHandler_BadID(t *testing.T) {
	router := newIssueRouter(&fakeIssues{}, &fakeSessions{}, nil)

	rec := serve(router, http.MethodPost, "/issues/abc/close", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssueHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"not signed in", inbound.ErrUnauthenticated, http.StatusUnauthorized, "User not logged in"},
		{"missing issue", inbound.ErrIssueNotFound, http.StatusNotFound, "Issue not found"},
		{"no project", inbound.ErrNoProject, http.StatusBadRequest, "No project selected"},
		{"token rejected", &gitlab.APIError{StatusCode: http.StatusForbidden}, http.StatusUnauthorized, ""},
		{"upstream missing", &gitlab.APIError{StatusCode: http.StatusNotFound}, http.StatusNotFound, ""},
		{"upstream failure", &gitlab.APIError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newIssueRouter(&fakeIssues{err: tt.err}, &fakeSessions{}, nil)

			rec := serve(router, http.MethodPost, "/issues/7/close", "")

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestIssueHandler_Comment(t *testing.T) {
	issues := &fakeIssues{}
	sess := &session.Session{ID: "s", AccessToken: "user-token"}
	router := newIssueRouter(issues, &fakeSessions{}, sess)

	rec := serve(router, http.MethodPost, "/issues/7/comments", `{"comment":"looks good"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "looks good", issues.comment)
}

func TestIssueHandler_CommentRequiresBody(t *testing.T) {
	for _, body := range []string{`{}`, `not json`, `{"comment":12}`} {
		issues := &fakeIssues{}
		router := newIssueRouter(issues, &fakeSessions{}, &session.Session{AccessToken: "t"})

		rec := serve(router, http.MethodPost, "/issues/7/comments", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Invalid comment", rec.Body.String(), body)
		assert.Empty(t, issues.comment, body)
	}
}

func TestIssueHandler_CommentValidationFromUseCase(t *testing.T) {
	router := newIssueRouter(&fakeIssues{err: inbound.ErrInvalidComment}, &fakeSessions{}, nil)

	rec := serve(router, http.MethodPost, "/issues/7/comments", `{"comment":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid comment", rec.Body.String())
}

func TestIssueHandler_Projects(t *testing.T) {
	router := newIssueRouter(&fakeIssues{}, &fakeSessions{}, &session.Session{AccessToken: "t"})

	rec := serve(router, http.MethodGet, "/projects", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var projects []gitlab.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "relay", projects[0].Name)
}

func TestIssueHandler_RegisterWebhookSelectsProject(t *testing.T) {
	issues := &fakeIssues{}
	sessions := &fakeSessions{}
	sess := &session.Session{ID: "s", AccessToken: "user-token"}
	router := newIssueRouter(issues, sessions, sess)

	rec := serve(router, http.MethodPost, "/projects/42/webhook", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", issues.hooked)
	require.NotNil(t, sessions.last())
	assert.Equal(t, "42", sessions.last().ProjectID)

	var body struct {
		Success bool               `json:"success"`
		Webhook gitlab.ProjectHook `json:"webhook"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(9), body.Webhook.ID)
}
