package handler_test

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/gitlab"
	"go-issue-relay/internal/infrastructure/session"
	"go-issue-relay/internal/port/inbound"
)

type fakeRelay struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (r *fakeRelay) Ingest(_ context.Context, body []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
	if r.err != nil {
		return 0, r.err
	}
	return 1, nil
}

func (r *fakeRelay) Deliver(context.Context, event.CanonicalEvent) error { return nil }

func (r *fakeRelay) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

type fakeSnapshots struct {
	issues  []event.CanonicalEvent
	commits []event.CanonicalEvent
	creds   inbound.Credentials
}

func (s *fakeSnapshots) OpenIssues(_ context.Context, creds inbound.Credentials) []event.CanonicalEvent {
	s.creds = creds
	return s.issues
}

func (s *fakeSnapshots) RecentCommits(_ context.Context, creds inbound.Credentials) []event.CanonicalEvent {
	s.creds = creds
	return s.commits
}

type fakeIssues struct {
	err     error
	creds   inbound.Credentials
	closed  []int64
	comment string
	hooked  string
}

func (f *fakeIssues) CloseIssue(_ context.Context, creds inbound.Credentials, issueID int64) (*gitlab.Issue, error) {
	f.creds = creds
	if f.err != nil {
		return nil, f.err
	}
	f.closed = append(f.closed, issueID)
	return &gitlab.Issue{ID: issueID, State: "closed"}, nil
}

func (f *fakeIssues) CommentOnIssue(_ context.Context, creds inbound.Credentials, issueID int64, comment string) (*gitlab.Note, error) {
	f.creds = creds
	if f.err != nil {
		return nil, f.err
	}
	f.comment = comment
	return &gitlab.Note{ID: 1, Body: comment}, nil
}

func (f *fakeIssues) ListProjects(_ context.Context, creds inbound.Credentials) ([]gitlab.Project, error) {
	f.creds = creds
	if f.err != nil {
		return nil, f.err
	}
	return []gitlab.Project{{ID: 42, Name: "relay"}}, nil
}

func (f *fakeIssues) RegisterWebhook(_ context.Context, creds inbound.Credentials, projectID string) (*gitlab.ProjectHook, error) {
	f.creds = creds
	if f.err != nil {
		return nil, f.err
	}
	f.hooked = projectID
	return &gitlab.ProjectHook{ID: 9, URL: "https://relay.example.com/webhook"}, nil
}

// fakeSessions keeps sessions in the gin context only.
type fakeSessions struct {
	saved       []*session.Session
	renewedFrom []string
	destroyed   bool
}

func (s *fakeSessions) Ensure(c *gin.Context) (*session.Session, error) {
	if sess := session.FromContext(c); sess != nil {
		return sess, nil
	}
	sess := &session.Session{ID: "new"}
	c.Set("session", sess)
	return sess, nil
}

func (s *fakeSessions) Save(_ *gin.Context, sess *session.Session) error {
	copied := *sess
	s.saved = append(s.saved, &copied)
	return nil
}

// Renew records the session under a new id.
func (s *fakeSessions) Renew(c *gin.Context, sess *session.Session) (*session.Session, error) {
	renewed := *sess
	renewed.ID = sess.ID + "-renewed"
	s.renewedFrom = append(s.renewedFrom, sess.ID)
	c.Set("session", &renewed)
	return &renewed, s.Save(c, &renewed)
}

func (s *fakeSessions) Destroy(*gin.Context) error {
	s.destroyed = true
	return nil
}

func (s *fakeSessions) last() *session.Session {
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

type fakeOAuth struct {
	enabled bool
	err     error
	code    string
}

func (o *fakeOAuth) Enabled() bool { return o.enabled }

func (o *fakeOAuth) AuthCodeURL(state string) string {
	return "https://gitlab.example.com/oauth/authorize?state=" + state
}

func (o *fakeOAuth) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	o.code = code
	if o.err != nil {
		return nil, o.err
	}
	return &oauth2.Token{AccessToken: "access-" + code}, nil
}

// withSession attaches sess to every request, standing in for the
// session middleware.
func withSession(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sess != nil {
			c.Set("session", sess)
		}
		c.Next()
	}
}
