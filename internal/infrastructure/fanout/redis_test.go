package fanout

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/logger"
)

func newBridge() *RedisBridge {
	// The client is never dialed by these tests.
	return NewRedisBridge(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "events", logger.NewNop())
}

func collect(into *[]event.CanonicalEvent) DeliverFunc {
	return func(_ context.Context, ev event.CanonicalEvent) error {
		*into = append(*into, ev)
		return nil
	}
}

func TestHandleMessage_DeliversRemoteEvents(t *testing.T) {
	sender, receiver := newBridge(), newBridge()

	payload, err := sender.encode(event.NewIssueEvent(event.Issue{ID: 7, Title: "Bug", RawState: "closed"}))
	require.NoError(t, err)

	var got []event.CanonicalEvent
	receiver.handleMessage(context.Background(), payload, collect(&got))

	require.Len(t, got, 1)
	assert.Equal(t, "issue:7", got[0].Key())
	assert.True(t, got[0].IsClosedIssue())
}

func TestHandleMessage_SkipsOwnEvents(t *testing.T) {
	bridge := newBridge()

	payload, err := bridge.encode(event.NewCommitEvent(event.Commit{ID: "abc"}))
	require.NoError(t, err)

	var got []event.CanonicalEvent
	bridge.handleMessage(context.Background(), payload, collect(&got))
	assert.Empty(t, got)
}

func TestHandleMessage_DropsGarbage(t *testing.T) {
	bridge := newBridge()

	var got []event.CanonicalEvent
	bridge.handleMessage(context.Background(), []byte(`not json`), collect(&got))
	bridge.handleMessage(context.Background(), []byte(`{"origin":"other","event":{"type":"welcome"}}`), collect(&got))
	assert.Empty(t, got)
}
