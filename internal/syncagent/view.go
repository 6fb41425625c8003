package syncagent

import (
	"sync"

	"go-issue-relay/internal/domain/event"
)

type entry struct {
	event event.CanonicalEvent
	// rev is the view revision of the last live change to this entry.
	rev uint64
}

// View is the merged, ordered list of open issues and recent commits a
// client renders. Live events and snapshots both feed it.
//
// Every live change bumps the revision. A snapshot is merged against the
// revision observed when its fetch started, so data the snapshot could
// not have seen is never overwritten, resurrected or pruned by it.
type View struct {
	mu      sync.RWMutex
	rev     uint64
	issues  []entry
	commits []entry
	// removed maps keys of issues closed live to the closing revision.
	removed map[string]uint64
}

func NewView() *View {
	return &View{removed: make(map[string]uint64)}
}

// Revision returns the current revision. Pass it to Merge for a snapshot
// fetched from this point on.
func (v *View) Revision() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rev
}

// Apply merges one live event. It reports whether the view changed.
func (v *View) Apply(ev event.CanonicalEvent) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rev++
	switch ev.Kind() {
	case event.KindIssue:
		if ev.IsClosedIssue() {
			v.removed[ev.Key()] = v.rev
			var ok bool
			v.issues, ok = remove(v.issues, ev.Key())
			return ok
		}
		delete(v.removed, ev.Key())
		v.issues = upsertHead(v.issues, entry{event: ev, rev: v.rev})
		return true
	case event.KindCommit:
		v.commits = upsertHead(v.commits, entry{event: ev, rev: v.rev})
		return true
	default:
		return false
	}
}

// MergeIssues merges a snapshot of open issues fetched after since.
// Issues the snapshot does not list are dropped unless they changed live
// after since; they were closed while the client was not listening.
func (v *View) MergeIssues(since uint64, snapshot []event.CanonicalEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	listed := make(map[string]bool, len(snapshot))
	for _, ev := range snapshot {
		if ev.Kind() != event.KindIssue || ev.IsClosedIssue() {
			continue
		}
		listed[ev.Key()] = true
		v.issues = v.mergeOne(v.issues, since, ev)
	}

	kept := v.issues[:0]
	for _, e := range v.issues {
		if listed[e.event.Key()] || e.rev > since {
			kept = append(kept, e)
		}
	}
	v.issues = kept

	for key, rev := range v.removed {
		if rev <= since {
			delete(v.removed, key)
		}
	}
}

// MergeCommits merges a snapshot of recent commits fetched after since.
// Commits are never pruned; the snapshot is a window, not the full set.
func (v *View) MergeCommits(since uint64, snapshot []event.CanonicalEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, ev := range snapshot {
		if ev.Kind() != event.KindCommit {
			continue
		}
		v.commits = v.mergeOne(v.commits, since, ev)
	}
}

// mergeOne replaces an entry in place unless it changed live after since,
// and appends unseen entries in snapshot order. Entries removed live
// after since stay removed.
func (v *View) mergeOne(entries []entry, since uint64, ev event.CanonicalEvent) []entry {
	if rev, ok := v.removed[ev.Key()]; ok && rev > since {
		return entries
	}

	if i := indexOf(entries, ev.Key()); i >= 0 {
		if entries[i].rev <= since {
			entries[i].event = ev
		}
		return entries
	}
	return append(entries, entry{event: ev, rev: since})
}

// Issues returns the open issues, most recently added first.
func (v *View) Issues() []event.CanonicalEvent {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return events(v.issues)
}

// Commits returns the commits, most recently added first.
func (v *View) Commits() []event.CanonicalEvent {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return events(v.commits)
}

func events(entries []entry) []event.CanonicalEvent {
	out := make([]event.CanonicalEvent, len(entries))
	for i, e := range entries {
		out[i] = e.event
	}
	return out
}

func indexOf(entries []entry, key string) int {
	for i, e := range entries {
		if e.event.Key() == key {
			return i
		}
	}
	return -1
}

func upsertHead(entries []entry, e entry) []entry {
	if i := indexOf(entries, e.event.Key()); i >= 0 {
		entries[i] = e
		return entries
	}
	return append([]entry{e}, entries...)
}

func remove(entries []entry, key string) ([]entry, bool) {
	i := indexOf(entries, key)
	if i < 0 {
		return entries, false
	}
	return append(entries[:i], entries[i+1:]...), true
}
