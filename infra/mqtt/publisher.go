package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/mtrr/core/model"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
)

// Published is one frame recorded by MockPublisher.
type Published struct {
	Topic    string
	Frame    model.Frame
	Retained bool
}

// MockPublisher records frames instead of sending them. Topics listed in
// FailTopics return coremqtt.ErrPublish.
type MockPublisher struct {
	mu         sync.Mutex
	Messages   []Published
	Retained   map[string]model.Frame
	FailTopics map[string]bool
}

var _ coremqtt.Publisher = (*MockPublisher)(nil)

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Retained: make(map[string]model.Frame), FailTopics: make(map[string]bool)}
}

func (m *MockPublisher) Publish(_ context.Context, topic string, f model.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTopics[topic] {
		return fmt.Errorf("%w: %s", coremqtt.ErrPublish, topic)
	}
	m.Messages = append(m.Messages, Published{Topic: topic, Frame: f})
	return nil
}

func (m *MockPublisher) PublishRetained(_ context.Context, topic string, f model.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTopics[topic] {
		return fmt.Errorf("%w: %s", coremqtt.ErrPublish, topic)
	}
	m.Messages = append(m.Messages, Published{Topic: topic, Frame: f, Retained: true})
	m.Retained[topic] = f
	return nil
}

func (m *MockPublisher) Unpublish(_ context.Context, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Retained, topic)
	return nil
}

// On returns the frames published on topic.
func (m *MockPublisher) On(topic string) []model.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Frame
	for _, p := range m.Messages {
		if p.Topic == topic {
			out = append(out, p.Frame)
		}
	}
	return out
}

// Count returns how many frames were recorded.
func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}
