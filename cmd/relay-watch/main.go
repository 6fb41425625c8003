// Command relay-watch follows a relay's event stream from the terminal,
// keeping the same merged view a browser client would render.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/syncagent"
)

func main() {
	relayURL := pflag.String("url", "http://localhost:3000", "relay base URL")
	delay := pflag.Duration("delay", syncagent.DefaultReconnectDelay, "wait between reconnect attempts")
	level := pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	pflag.Parse()

	cfg := logger.NewDefaultConfig()
	if err := cfg.Level.UnmarshalText([]byte(*level)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(2)
	}
	log := logger.NewLogrusLogger(cfg)

	streamURL, snapshotURL, err := syncagent.Endpoints(*relayURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent := syncagent.New(
		&syncagent.WebSocketDialer{URL: streamURL},
		syncagent.NewHTTPSnapshotSource(snapshotURL, nil),
		log,
		syncagent.Options{
			ReconnectDelay: *delay,
			OnChange:       func(v *syncagent.View) { printView(log, v) },
		},
	)

	log.Infof("Watching %s", streamURL)
	if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("watch stopped: %v", err)
		os.Exit(1)
	}
}

func printView(log logger.Logger, v *syncagent.View) {
	issues, commits := v.Issues(), v.Commits()
	log.Infof("%d open issues, %d commits", len(issues), len(commits))

	for _, ev := range issues {
		issue, _ := ev.Issue()
		log.Infof("  #%d %s", issue.ID, issue.Title)
	}
	for _, ev := range commits {
		commit, _ := ev.Commit()
		log.Infof("  %.8s %s (%s)", commit.ID, firstLine(commit.Message), commit.AuthorName)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
