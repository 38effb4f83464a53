package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// diffSnapshots lists the removals from prev followed by the additions in cur,
// each in snapshot order.
func diffSnapshots(prev, cur []string) []WatchEvent {
	inPrev := make(map[string]bool, len(prev))
	for _, name := range prev {
		inPrev[name] = true
	}
	inCur := make(map[string]bool, len(cur))
	for _, name := range cur {
		inCur[name] = true
	}

	var events []WatchEvent
	for _, name := range prev {
		if !inCur[name] {
			events = append(events, WatchEvent{Name: name, Connected: false})
		}
	}
	for _, name := range cur {
		if !inPrev[name] {
			events = append(events, WatchEvent{Name: name, Connected: true})
		}
	}
	return events
}

// watchDisks re-enumerates the registry every interval and reports the
// removable disks that appeared or disappeared since the previous snapshot.
// The first snapshot reports every present disk as connected.
func watchDisks(ctx context.Context, reg Registry, interval time.Duration, fn func(WatchEvent)) error {
	logger := log.WithField("component", "watch")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev []string
	poll := func() {
		cur, err := listRemovableDisks(reg)
		if err != nil {
			logger.Warnf("Skipping snapshot: %v.", err)
			return
		}
		for _, ev := range diffSnapshots(prev, cur) {
			fn(ev)
		}
		prev = cur
	}

	poll()
	for {
		select {
		case <-ticker.C:
			poll()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
