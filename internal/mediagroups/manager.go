package mediagroups

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultProcessDelay is how long to wait for the rest of an album after its first photo.
	DefaultProcessDelay = 2 * time.Second
	// DefaultMaxGroupSize matches Telegram's album limit.
	DefaultMaxGroupSize = 10
	// DefaultProcessTimeout bounds the handler call for one album.
	DefaultProcessTimeout = 2 * time.Minute
)

// ProcessFunc handles a completed album, messages sorted by id.
type ProcessFunc func(ctx context.Context, groupID string, messages []telego.Message) error

type mediaGroupState struct {
	messages []telego.Message
	timer    *time.Timer
	done     bool // messages already handed to process
	mu       sync.Mutex
}

// Manager collects album messages that arrive as separate updates and hands them
// over together once the group has been quiet for the process delay.
type Manager struct {
	groups         sync.Map // map[string]*mediaGroupState
	processTimeout time.Duration
	wg             sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{processTimeout: DefaultProcessTimeout}
}

// HandleMessage adds message to its group and schedules processing on the first one.
// Messages without a media group id are ignored.
func (m *Manager) HandleMessage(message telego.Message, handler ProcessFunc, delay time.Duration, maxSize int) {
	if message.MediaGroupID == "" {
		return
	}
	groupID := message.MediaGroupID

	var state *mediaGroupState
	for {
		actual, _ := m.groups.LoadOrStore(groupID, &mediaGroupState{
			messages: make([]telego.Message, 0, maxSize),
		})
		state = actual.(*mediaGroupState)
		state.mu.Lock()
		if !state.done {
			break
		}
		// The group was taken between load and lock; this message starts a new one.
		state.mu.Unlock()
		m.groups.CompareAndDelete(groupID, state)
	}
	defer state.mu.Unlock()

	for _, msg := range state.messages {
		if msg.MessageID == message.MessageID {
			return
		}
	}
	if len(state.messages) >= maxSize {
		log.Warn().Str("group_id", groupID).Int("message_id", message.MessageID).Msg("Media group limit reached, message dropped")
		return
	}

	state.messages = append(state.messages, message)
	sort.Slice(state.messages, func(i, j int) bool {
		return state.messages[i].MessageID < state.messages[j].MessageID
	})
	log.Debug().Str("group_id", groupID).Int("count", len(state.messages)).Msg("Media group message stored")

	if state.timer != nil {
		return
	}
	m.wg.Add(1)
	state.timer = time.AfterFunc(delay, func() {
		defer m.wg.Done()
		m.process(groupID, handler)
	})
}

func (m *Manager) process(groupID string, handler ProcessFunc) {
	messages := m.getAndRemoveGroup(groupID)
	if len(messages) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.processTimeout)
	defer cancel()

	log.Debug().Str("group_id", groupID).Int("count", len(messages)).Msg("Processing media group")
	if err := handler(ctx, groupID, messages); err != nil {
		log.Error().Err(err).Str("group_id", groupID).Msg("Failed to process media group")
	}
}

// getAndRemoveGroup retrieves the messages and forgets the group.
func (m *Manager) getAndRemoveGroup(groupID string) []telego.Message {
	val, loaded := m.groups.LoadAndDelete(groupID)
	if !loaded {
		return nil
	}
	state := val.(*mediaGroupState)

	state.mu.Lock()
	defer state.mu.Unlock()
	state.timer = nil
	state.done = true

	msgs := make([]telego.Message, len(state.messages))
	copy(msgs, state.messages)
	return msgs
}

// Shutdown stops pending timers and waits for albums already being processed.
// Albums whose timer had not fired yet are dropped.
func (m *Manager) Shutdown() {
	stopped := 0
	m.groups.Range(func(key, value interface{}) bool {
		state := value.(*mediaGroupState)
		state.mu.Lock()
		if state.timer != nil && state.timer.Stop() {
			stopped++
			m.wg.Done()
		}
		state.timer = nil
		state.done = true
		state.mu.Unlock()
		m.groups.Delete(key)
		return true
	})
	m.wg.Wait()
	log.Info().Int("stopped", stopped).Msg("Media group manager stopped")
}
