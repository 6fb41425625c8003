package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Object kinds the normalizer understands, as sent in the webhook body's
// object_kind field.
const (
	ObjectKindIssue = "issue"
	ObjectKindPush  = "push"
)

var (
	// ErrUnrecognizedKind marks payloads of a kind the relay does not relay.
	// Callers log it and acknowledge the delivery.
	ErrUnrecognizedKind = errors.New("unrecognized object kind")

	// ErrMalformedPayload marks bodies that are not the JSON we expect.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

type webhookPayload struct {
	ObjectKind       string          `json:"object_kind"`
	ObjectAttributes json.RawMessage `json:"object_attributes"`
	Commits          json.RawMessage `json:"commits"`
}

type issueAttributes struct {
	ID        int64  `json:"id"`
	IID       int64  `json:"iid"`
	ProjectID int64  `json:"project_id"`
	Title     string `json:"title"`
	State     string `json:"state"`
	Action    string `json:"action"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	URL       string `json:"url"`
}

type pushCommit struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"created_at"`
	URL       string `json:"url"`
	Author    struct {
		Name string `json:"name"`
	} `json:"author"`
}

// ObjectKind returns the object_kind declared by a webhook body, or "" when the
// body is not a JSON object.
func ObjectKind(body []byte) string {
	var payload struct {
		ObjectKind string `json:"object_kind"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.ObjectKind
}

// Normalize converts a raw webhook body into canonical events. An issue
// payload yields exactly one issue event; a push payload yields one commit
// event per entry of its commits list, in list order. Other kinds yield no
// events and an error wrapping ErrUnrecognizedKind.
func Normalize(body []byte) ([]CanonicalEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch payload.ObjectKind {
	case ObjectKindIssue:
		return normalizeIssue(payload.ObjectAttributes)
	case ObjectKindPush:
		return normalizePush(payload.Commits)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedKind, payload.ObjectKind)
	}
}

func normalizeIssue(raw json.RawMessage) ([]CanonicalEvent, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: issue payload without object_attributes", ErrMalformedPayload)
	}

	var attrs issueAttributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("%w: issue attributes: %v", ErrMalformedPayload, err)
	}

	return []CanonicalEvent{NewIssueEvent(Issue{
		ID:        attrs.ID,
		IID:       attrs.IID,
		ProjectID: attrs.ProjectID,
		Title:     attrs.Title,
		RawState:  attrs.State,
		Action:    attrs.Action,
		CreatedAt: attrs.CreatedAt,
		UpdatedAt: attrs.UpdatedAt,
		URL:       attrs.URL,
	})}, nil
}

func normalizePush(raw json.RawMessage) ([]CanonicalEvent, error) {
	// A push without a commits array (tag pushes, branch deletions) is
	// valid and simply carries nothing to relay.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil
	}

	var commits []pushCommit
	if err := json.Unmarshal(trimmed, &commits); err != nil {
		return nil, fmt.Errorf("%w: push commits: %v", ErrMalformedPayload, err)
	}

	events := make([]CanonicalEvent, 0, len(commits))
	for _, c := range commits {
		timestamp := c.Timestamp
		if timestamp == "" {
			timestamp = c.CreatedAt
		}
		events = append(events, NewCommitEvent(Commit{
			ID:         c.ID,
			Message:    c.Message,
			AuthorName: c.Author.Name,
			Timestamp:  timestamp,
			URL:        c.URL,
		}))
	}
	return events, nil
}
