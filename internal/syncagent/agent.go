// Package syncagent keeps a client-side view of a relay's issues and
// commits current across connection loss.
package syncagent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/logger"
)

const DefaultReconnectDelay = 3 * time.Second

type Options struct {
	// ReconnectDelay is the fixed wait between a lost connection and the
	// next dial. Zero means DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// Wait blocks for d or until ctx ends. Defaults to a timer.
	Wait func(ctx context.Context, d time.Duration) error

	// OnChange is called after the view changes. Calls may come from
	// more than one goroutine.
	OnChange func(v *View)

	// OnState is called on every state transition.
	OnState func(s State)
}

// Agent dials a relay, merges its events into a View and reconnects with a
// fixed delay when the connection is lost. Every time the connection opens
// it fetches a snapshot and merges it into the view.
type Agent struct {
	dialer  Dialer
	source  SnapshotSource
	view    *View
	logger  logger.Logger
	options Options

	mu    sync.RWMutex
	state State
}

func New(dialer Dialer, source SnapshotSource, log logger.Logger, options Options) *Agent {
	if options.ReconnectDelay <= 0 {
		options.ReconnectDelay = DefaultReconnectDelay
	}
	if options.Wait == nil {
		options.Wait = sleep
	}
	return &Agent{
		dialer:  dialer,
		source:  source,
		view:    NewView(),
		logger:  log.WithField("component", "syncagent"),
		options: options,
		state:   Connecting,
	}
}

func (a *Agent) View() *View {
	return a.view
}

func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Run drives the connection state machine until ctx ends, then returns
// the context's error.
func (a *Agent) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch a.State() {
		case Connecting:
			stream, err := a.dialer.Dial(ctx)
			if err != nil {
				a.logger.Warnf("Connection failed: %v", err)
				a.signal(DialFailed)
				continue
			}
			a.signal(Dialed)
			a.serve(ctx, stream)
			a.signal(Lost)

		case Reconnecting:
			if err := a.options.Wait(ctx, a.options.ReconnectDelay); err != nil {
				return err
			}
			a.signal(DelayElapsed)

		default:
			// Open is only entered and left inside serve.
			a.signal(Lost)
		}
	}
}

func (a *Agent) signal(sig Signal) {
	a.mu.Lock()
	from := a.state
	a.state = Transition(from, sig)
	to := a.state
	a.mu.Unlock()

	if from != to {
		a.logger.Infof("Connection %s -> %s (%s)", from, to, sig)
		if a.options.OnState != nil {
			a.options.OnState(to)
		}
	}
}

// serve reads events until the stream fails. The snapshot is fetched
// concurrently so live events are not held up behind it.
func (a *Agent) serve(ctx context.Context, stream Stream) {
	connCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(connCtx, func() { stream.Close() })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.resync(connCtx)
	}()

	for {
		data, err := stream.ReadMessage()
		if err != nil {
			if connCtx.Err() == nil {
				a.logger.Infof("Connection lost: %v", err)
			}
			break
		}
		a.handle(data)
	}

	cancel()
	stop()
	stream.Close()
	wg.Wait()
}

func (a *Agent) handle(data []byte) {
	ev, msgType, err := event.ParseMessage(data)
	if errors.Is(err, event.ErrNotAnEvent) {
		if msgType != event.MessageTypeWelcome {
			a.logger.Debugf("Ignoring message of type %q", msgType)
		}
		return
	}
	if err != nil {
		a.logger.Warnf("Ignoring malformed message: %v", err)
		return
	}

	if a.view.Apply(ev) {
		a.changed()
	}
}

// resync merges a fresh snapshot. A list whose fetch fails is left as is.
func (a *Agent) resync(ctx context.Context) {
	since := a.view.Revision()

	issues, err := a.source.Issues(ctx)
	if err != nil {
		a.logger.Warnf("Failed to fetch issue snapshot: %v", err)
	} else {
		a.view.MergeIssues(since, issues)
	}

	commits, err := a.source.Commits(ctx)
	if err != nil {
		a.logger.Warnf("Failed to fetch commit snapshot: %v", err)
	} else {
		a.view.MergeCommits(since, commits)
	}

	a.changed()
}

func (a *Agent) changed() {
	if a.options.OnChange != nil {
		a.options.OnChange(a.view)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
