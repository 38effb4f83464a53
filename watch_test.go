package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSnapshots(t *testing.T) {
	assert.Empty(t, diffSnapshots(nil, nil))
	assert.Empty(t, diffSnapshots([]string{"sda"}, []string{"sda"}))

	assert.Equal(t, []WatchEvent{
		{Name: "sda", Connected: true},
		{Name: "sdb", Connected: true},
	}, diffSnapshots(nil, []string{"sda", "sdb"}))

	assert.Equal(t, []WatchEvent{
		{Name: "sda", Connected: false},
		{Name: "sdc", Connected: true},
	}, diffSnapshots([]string{"sda", "sdb"}, []string{"sdb", "sdc"}))
}

// lockedRegistry lets the test mutate the fixture while the watcher polls it
type lockedRegistry struct {
	mu  sync.Mutex
	reg *memRegistry
}

func (l *lockedRegistry) Entries() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.Entries()
}

func (l *lockedRegistry) FirstByte(entry, attribute string) (byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.FirstByte(entry, attribute)
}

func (l *lockedRegistry) update(fn func(*memRegistry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.reg)
}

func TestWatchDisks(t *testing.T) {
	reg := &lockedRegistry{reg: fixtureRegistry()}
	events := make(chan WatchEvent, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- watchDisks(ctx, reg, 10*time.Millisecond, func(ev WatchEvent) { events <- ev })
	}()

	next := func() WatchEvent {
		select {
		case ev := <-events:
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watch event")
			return WatchEvent{}
		}
	}

	assert.Equal(t, WatchEvent{Name: "sda", Connected: true}, next())

	reg.update(func(m *memRegistry) {
		m.add("sdd", attrRemovable, "1", attrDeviceType, "0")
	})
	assert.Equal(t, WatchEvent{Name: "sdd", Connected: true}, next())

	reg.update(func(m *memRegistry) { m.remove("sda") })
	assert.Equal(t, WatchEvent{Name: "sda", Connected: false}, next())

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchDisksSkipsFailedSnapshots(t *testing.T) {
	reg := &lockedRegistry{reg: fixtureRegistry()}
	reg.reg.listErr = ErrRegistryUnavailable
	events := make(chan WatchEvent, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = watchDisks(ctx, reg, 10*time.Millisecond, func(ev WatchEvent) { events <- ev })
	}()

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	reg.update(func(m *memRegistry) { m.listErr = nil })
	select {
	case ev := <-events:
		assert.Equal(t, WatchEvent{Name: "sda", Connected: true}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}
