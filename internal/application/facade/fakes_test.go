package facade_test

import (
	"context"
	"errors"
	"sync"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/gitlab"
	"go-issue-relay/internal/infrastructure/hub"
	"go-issue-relay/internal/port/outbound"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []*hub.Message
	err      error
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, message *hub.Message) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	b.messages = append(b.messages, message)
	return 1, nil
}

func (b *recordingBroadcaster) sent() []*hub.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*hub.Message(nil), b.messages...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.CanonicalEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev event.CanonicalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

var errUpstream = errors.New("upstream unavailable")

// fakeTracker is an in-memory IssueTracker recording the token it was
// created with.
type fakeTracker struct {
	token string

	issues   []gitlab.Issue
	commits  []gitlab.Commit
	projects []gitlab.Project
	err      error

	closed  []int64
	notes   map[int64]string
	hooks   []gitlab.HookOptions
	queried []string
}

func (f *fakeTracker) For(token string) outbound.IssueTracker {
	f.token = token
	return f
}

func (f *fakeTracker) ListIssues(_ context.Context, project, state string) ([]gitlab.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queried = append(f.queried, project)
	return f.issues, nil
}

func (f *fakeTracker) ListCommits(_ context.Context, project string) ([]gitlab.Commit, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queried = append(f.queried, project)
	return f.commits, nil
}

func (f *fakeTracker) CloseIssue(_ context.Context, project string, iid int64) (*gitlab.Issue, error) {
	f.closed = append(f.closed, iid)
	return &gitlab.Issue{IID: iid, State: gitlab.IssueStateClosed}, nil
}

func (f *fakeTracker) CreateIssueNote(_ context.Context, project string, iid int64, body string) (*gitlab.Note, error) {
	if f.notes == nil {
		f.notes = make(map[int64]string)
	}
	f.notes[iid] = body
	return &gitlab.Note{ID: 1, Body: body}, nil
}

func (f *fakeTracker) ListProjects(context.Context) ([]gitlab.Project, error) {
	return f.projects, f.err
}

func (f *fakeTracker) CreateProjectHook(_ context.Context, project string, options gitlab.HookOptions) (*gitlab.ProjectHook, error) {
	f.hooks = append(f.hooks, options)
	return &gitlab.ProjectHook{ID: 5, URL: options.URL}, nil
}

func (f *fakeTracker) CurrentUser(context.Context) (*gitlab.User, error) {
	return &gitlab.User{ID: 1, Username: "dev"}, nil
}
