package syncagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-issue-relay/internal/domain/event"
)

// SnapshotSource returns the relay's current full lists.
type SnapshotSource interface {
	Issues(ctx context.Context) ([]event.CanonicalEvent, error)
	Commits(ctx context.Context) ([]event.CanonicalEvent, error)
}

const maxSnapshotBytes = 8 << 20

// HTTPSnapshotSource reads snapshots from a relay's /issues and /commits
// endpoints.
type HTTPSnapshotSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSnapshotSource(baseURL string, client *http.Client) *HTTPSnapshotSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSnapshotSource{baseURL: baseURL, client: client}
}

func (s *HTTPSnapshotSource) Issues(ctx context.Context) ([]event.CanonicalEvent, error) {
	return s.fetch(ctx, "/issues")
}

func (s *HTTPSnapshotSource) Commits(ctx context.Context) ([]event.CanonicalEvent, error) {
	return s.fetch(ctx, "/commits")
}

func (s *HTTPSnapshotSource) fetch(ctx context.Context, path string) ([]event.CanonicalEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", path, resp.StatusCode)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes)).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	events := make([]event.CanonicalEvent, 0, len(items))
	for _, item := range items {
		ev, _, err := event.ParseMessage(item)
		if errors.Is(err, event.ErrNotAnEvent) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
