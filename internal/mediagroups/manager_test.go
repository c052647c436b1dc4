package mediagroups

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	groups map[string][]int
	done   chan struct{}
}

func newCollector() *collector {
	return &collector{groups: make(map[string][]int), done: make(chan struct{}, 10)}
}

func (c *collector) handle(_ context.Context, groupID string, messages []telego.Message) error {
	c.mu.Lock()
	for _, msg := range messages {
		c.groups[groupID] = append(c.groups[groupID], msg.MessageID)
	}
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("media group was not processed")
	}
}

func TestManagerCollectsAlbum(t *testing.T) {
	m := NewManager()
	c := newCollector()

	for _, id := range []int{12, 10, 11, 10} {
		m.HandleMessage(telego.Message{MessageID: id, MediaGroupID: "g1"}, c.handle, 20*time.Millisecond, DefaultMaxGroupSize)
	}
	c.wait(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, []int{10, 11, 12}, c.groups["g1"], "sorted, duplicates dropped")
}

func TestManagerLimitsGroupSize(t *testing.T) {
	m := NewManager()
	c := newCollector()

	for id := 1; id <= 4; id++ {
		m.HandleMessage(telego.Message{MessageID: id, MediaGroupID: "g"}, c.handle, 20*time.Millisecond, 3)
	}
	c.wait(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.groups["g"], 3)
}

func TestManagerIgnoresSingleMessages(t *testing.T) {
	m := NewManager()
	c := newCollector()

	m.HandleMessage(telego.Message{MessageID: 1}, c.handle, time.Millisecond, DefaultMaxGroupSize)
	m.Shutdown()
	assert.Empty(t, c.groups)
}

func TestManagerShutdownDropsPending(t *testing.T) {
	m := NewManager()
	c := newCollector()

	m.HandleMessage(telego.Message{MessageID: 1, MediaGroupID: "g"}, c.handle, time.Hour, DefaultMaxGroupSize)
	m.Shutdown()

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.groups)
}

func TestManagerMessageAfterHandOffStartsNewGroup(t *testing.T) {
	m := NewManager()
	c := newCollector()

	// A state still visible to a loader after process took its messages.
	taken := &mediaGroupState{messages: []telego.Message{{MessageID: 1, MediaGroupID: "g3"}}, done: true}
	m.groups.Store("g3", taken)

	m.HandleMessage(telego.Message{MessageID: 2, MediaGroupID: "g3"}, c.handle, 20*time.Millisecond, DefaultMaxGroupSize)
	c.wait(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, []int{2}, c.groups["g3"])
	assert.Len(t, taken.messages, 1, "handed-off state is not modified")
}

func TestGetAndRemoveGroupMarksDone(t *testing.T) {
	m := NewManager()
	m.HandleMessage(telego.Message{MessageID: 5, MediaGroupID: "g4"}, func(context.Context, string, []telego.Message) error {
		return nil
	}, time.Hour, DefaultMaxGroupSize)

	val, ok := m.groups.Load("g4")
	require.True(t, ok)
	state := val.(*mediaGroupState)
	timer := state.timer

	msgs := m.getAndRemoveGroup("g4")
	require.Len(t, msgs, 1)
	assert.True(t, state.done)
	_, ok = m.groups.Load("g4")
	assert.False(t, ok)

	// Release the timer's WaitGroup slot the way Shutdown would.
	if timer.Stop() {
		m.wg.Done()
	}
	m.Shutdown()
}
