package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/imfiit/arena/internal/topicmgr"
)

// Event wraps a topic name and provides type-safe publishing. Declaring one
// registers the topic with topicmgr.Default.
type Event[T any] struct {
	topic topicmgr.Topic
}

// NewEvent creates a typed module event and registers it. The payload's
// json field names are recorded as topic metadata.
func NewEvent[T any](name, description string) Event[T] {
	return newEvent[T](topicmgr.DefineModule, name, description)
}

// NewFrameworkEvent is NewEvent for framework plumbing topics.
func NewFrameworkEvent[T any](name, description string) Event[T] {
	return newEvent[T](topicmgr.DefineFramework, name, description)
}

func newEvent[T any](define func(topicmgr.TopicConfig) topicmgr.Topic, name, description string) Event[T] {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var fields []string
	if t.Kind() == reflect.Struct {
		for i := range t.NumField() {
			tag, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
			if tag != "" && tag != "-" {
				fields = append(fields, tag)
			}
		}
	}

	topic := define(topicmgr.TopicConfig{
		Name:        name,
		Description: description,
		Metadata: map[string]any{
			"payload_fields": fields,
			"type_name":      t.Name(),
			"is_typed":       true,
		},
	})
	topicmgr.Default().MustRegister(topic)
	return Event[T]{topic: topic}
}

// Name returns the topic name.
func (e Event[T]) Name() string { return e.topic.Name() }

// Topic returns the registered topic.
func (e Event[T]) Topic() topicmgr.Topic { return e.topic }

// PublishOption adjusts the outgoing message.
type PublishOption func(*Message)

// From sets the initiating user.
func From(userID string) PublishOption {
	return func(m *Message) { m.UserID = userID }
}

// WithMetadata adds a metadata key.
func WithMetadata(key, value string) PublishOption {
	return func(m *Message) {
		if m.Metadata == nil {
			m.Metadata = make(map[string]string)
		}
		m.Metadata[key] = value
	}
}

// Publish sends a typed event. The compiler ensures payload matches T.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], payload T, opts ...PublishOption) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Name(), err)
	}
	msg := Message{Topic: event.Name(), Payload: data}
	for _, opt := range opts {
		opt(&msg)
	}
	return p.Publish(ctx, msg)
}

// Subscribe decodes each message on event's topic into T before calling fn.
func Subscribe[T any](ctx context.Context, s Subscriber, event Event[T], fn func(ctx context.Context, payload T, msg Message) error) error {
	return s.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.Name(), err)
		}
		return fn(ctx, payload, msg)
	})
}
