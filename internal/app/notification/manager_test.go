package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tunedeckv1 "github.com/osa030/tunedeck/internal/api/tunedeckv1"
)

type recordingStream struct {
	mu     sync.Mutex
	events []*tunedeckv1.PlaybackEvent
	block  chan struct{}
}

func (s *recordingStream) Send(e *tunedeckv1.PlaybackEvent) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingStream) received() []*tunedeckv1.PlaybackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*tunedeckv1.PlaybackEvent(nil), s.events...)
}

func TestManager_PublishIsTopicScoped(t *testing.T) {
	m := NewManager()
	alice1 := &recordingStream{}
	alice2 := &recordingStream{}
	bob := &recordingStream{}
	m.Subscribe("alice", alice1)
	m.Subscribe("alice", alice2)
	m.Subscribe("bob", bob)

	assert.Equal(t, 2, m.SubscriberCount("alice"))
	assert.Equal(t, 1, m.SubscriberCount("bob"))

	m.Publish("alice", &tunedeckv1.PlaybackEvent{Type: tunedeckv1.EventTypeTrackChanged})

	assert.Len(t, alice1.received(), 1)
	assert.Len(t, alice2.received(), 1)
	assert.Empty(t, bob.received())
}

func TestManager_SequenceNumbersIncrease(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	m.Subscribe("alice", s)

	m.Publish("alice", &tunedeckv1.PlaybackEvent{Type: tunedeckv1.EventTypeStateChanged})
	m.Publish("bob", &tunedeckv1.PlaybackEvent{Type: tunedeckv1.EventTypeStateChanged})
	m.Publish("alice", &tunedeckv1.PlaybackEvent{Type: tunedeckv1.EventTypeQueueChanged})

	got := s.received()
	require.Len(t, got, 2)
	assert.Less(t, got[0].SequenceNo, got[1].SequenceNo)
}

func TestManager_SlowSubscriberTimesOut(t *testing.T) {
	m := NewManager()
	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	fast := &recordingStream{}
	m.Subscribe("alice", slow)
	m.Subscribe("alice", fast)

	start := time.Now()
	m.Publish("alice", &tunedeckv1.PlaybackEvent{Type: tunedeckv1.EventTypeStateChanged})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, fast.received(), 1)
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	id := m.Subscribe("alice", s)
	m.Unsubscribe(id)

	m.Publish("alice", &tunedeckv1.PlaybackEvent{})

	assert.Empty(t, s.received())
	assert.Equal(t, 0, m.SubscriberCount("alice"))
	assert.NoError(t, m.Send(id, &tunedeckv1.PlaybackEvent{}))
}
