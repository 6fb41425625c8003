// Package event defines the canonical, provider-agnostic records the relay
// broadcasts to clients, and the JSON wire format they travel in.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Kind identifies what a CanonicalEvent describes.
type Kind string

const (
	KindIssue  Kind = "issue"
	KindCommit Kind = "commit"
)

// IssueState is the lifecycle state that decides list membership.
type IssueState string

const (
	StateOpened IssueState = "opened"
	StateClosed IssueState = "closed"
)

// ParseIssueState maps a provider state string onto the two states the
// relay cares about. Anything that is not "closed" keeps the issue listed.
func ParseIssueState(s string) IssueState {
	if s == string(StateClosed) {
		return StateClosed
	}
	return StateOpened
}

// MessageTypeWelcome is sent once on every new relay connection.
const MessageTypeWelcome = "welcome"

// Issue holds the issue fields of a CanonicalEvent. Timestamps and URL are
// carried verbatim from the provider.
type Issue struct {
	ID        int64
	IID       int64
	ProjectID int64
	Title     string
	State     IssueState
	RawState  string
	Action    string
	CreatedAt string
	UpdatedAt string
	URL       string
}

// Commit holds the commit fields of a CanonicalEvent.
type Commit struct {
	ID         string
	Message    string
	AuthorName string
	Timestamp  string
	URL        string
}

// CanonicalEvent is the unit of broadcast. Exactly one of Issue or Commit is
// set, matching Kind. Construct with NewIssueEvent or NewCommitEvent.
type CanonicalEvent struct {
	kind   Kind
	issue  *Issue
	commit *Commit
}

func NewIssueEvent(issue Issue) CanonicalEvent {
	if issue.State == "" {
		issue.State = ParseIssueState(issue.RawState)
	}
	return CanonicalEvent{kind: KindIssue, issue: &issue}
}

func NewCommitEvent(commit Commit) CanonicalEvent {
	return CanonicalEvent{kind: KindCommit, commit: &commit}
}

func (e CanonicalEvent) Kind() Kind { return e.kind }

// Issue returns a copy of the issue fields; ok is false for commit events.
func (e CanonicalEvent) Issue() (Issue, bool) {
	if e.issue == nil {
		return Issue{}, false
	}
	return *e.issue, true
}

// Commit returns a copy of the commit fields; ok is false for issue events.
func (e CanonicalEvent) Commit() (Commit, bool) {
	if e.commit == nil {
		return Commit{}, false
	}
	return *e.commit, true
}

// ID is the provider identifier rendered as a string.
func (e CanonicalEvent) ID() string {
	switch e.kind {
	case KindIssue:
		return strconv.FormatInt(e.issue.ID, 10)
	case KindCommit:
		return e.commit.ID
	default:
		return ""
	}
}

// Key identifies the event's subject across kinds. Ids are only unique
// within a kind, so the kind is part of the key.
func (e CanonicalEvent) Key() string {
	return string(e.kind) + ":" + e.ID()
}

// IsClosedIssue reports whether the event removes an issue from open views.
func (e CanonicalEvent) IsClosedIssue() bool {
	return e.kind == KindIssue && e.issue.State == StateClosed
}

// issueMessage and commitMessage are the flat wire shapes clients receive.
type issueMessage struct {
	Type      Kind   `json:"type"`
	ID        int64  `json:"id"`
	IID       int64  `json:"iid,omitempty"`
	ProjectID int64  `json:"project_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Title     string `json:"title"`
	State     string `json:"state"`
	URL       string `json:"url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type commitMessage struct {
	Type       Kind   `json:"type"`
	ID         string `json:"id"`
	Message    string `json:"message"`
	AuthorName string `json:"author_name"`
	Timestamp  string `json:"timestamp,omitempty"`
	URL        string `json:"url,omitempty"`
}

// MarshalJSON renders the event as {type: "issue"|"commit", ...fields}.
func (e CanonicalEvent) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case KindIssue:
		state := e.issue.RawState
		if state == "" {
			state = string(e.issue.State)
		}
		return json.Marshal(issueMessage{
			Type:      KindIssue,
			ID:        e.issue.ID,
			IID:       e.issue.IID,
			ProjectID: e.issue.ProjectID,
			Action:    e.issue.Action,
			Title:     e.issue.Title,
			State:     state,
			URL:       e.issue.URL,
			CreatedAt: e.issue.CreatedAt,
			UpdatedAt: e.issue.UpdatedAt,
		})
	case KindCommit:
		return json.Marshal(commitMessage{
			Type:       KindCommit,
			ID:         e.commit.ID,
			Message:    e.commit.Message,
			AuthorName: e.commit.AuthorName,
			Timestamp:  e.commit.Timestamp,
			URL:        e.commit.URL,
		})
	default:
		return nil, fmt.Errorf("marshal canonical event: unknown kind %q", e.kind)
	}
}

// ErrNotAnEvent is returned by ParseMessage for well-formed messages that do
// not carry a canonical event, such as the welcome greeting.
var ErrNotAnEvent = errors.New("message does not carry a canonical event")

// ParseMessage decodes one server-to-client message. Welcome and unknown
// message types return ErrNotAnEvent along with the message type.
func ParseMessage(data []byte) (CanonicalEvent, string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return CanonicalEvent{}, "", fmt.Errorf("decoding message: %w", err)
	}

	switch Kind(head.Type) {
	case KindIssue:
		var m issueMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return CanonicalEvent{}, head.Type, fmt.Errorf("decoding issue message: %w", err)
		}
		return NewIssueEvent(Issue{
			ID:        m.ID,
			IID:       m.IID,
			ProjectID: m.ProjectID,
			Title:     m.Title,
			RawState:  m.State,
			Action:    m.Action,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			URL:       m.URL,
		}), head.Type, nil
	case KindCommit:
		var m commitMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return CanonicalEvent{}, head.Type, fmt.Errorf("decoding commit message: %w", err)
		}
		return NewCommitEvent(Commit{
			ID:         m.ID,
			Message:    m.Message,
			AuthorName: m.AuthorName,
			Timestamp:  m.Timestamp,
			URL:        m.URL,
		}), head.Type, nil
	default:
		return CanonicalEvent{}, head.Type, ErrNotAnEvent
	}
}
