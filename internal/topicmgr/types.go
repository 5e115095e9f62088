package topicmgr

import (
	"fmt"
	"strings"
)

// Topic describes a named channel on the message bus.
type Topic interface {
	Name() string
	Module() string
	Description() string
	Scope() TopicScope
	Metadata() map[string]any
}

// TopicScope separates framework plumbing from feature module topics.
type TopicScope string

const (
	ScopeFramework TopicScope = "framework"
	ScopeModule    TopicScope = "module"
)

// TopicConfig holds configuration for creating a new topic.
type TopicConfig struct {
	Name        string         `json:"name"`
	Module      string         `json:"module"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// TypedTopic is the concrete Topic returned by DefineFramework and DefineModule.
type TypedTopic struct {
	name        string
	module      string
	description string
	scope       TopicScope
	metadata    map[string]any
}

var _ Topic = (*TypedTopic)(nil)

func (t *TypedTopic) Name() string        { return t.name }
func (t *TypedTopic) Module() string      { return t.module }
func (t *TypedTopic) Description() string { return t.description }
func (t *TypedTopic) Scope() TopicScope   { return t.scope }
func (t *TypedTopic) String() string      { return t.name }

// Metadata returns a copy of the topic metadata.
func (t *TypedTopic) Metadata() map[string]any {
	out := make(map[string]any, len(t.metadata))
	for k, v := range t.metadata {
		out[k] = v
	}
	return out
}

// ErrorType classifies a TopicError.
type ErrorType string

const (
	ErrorTypeInvalidName  ErrorType = "invalid_name"
	ErrorTypeDuplicate    ErrorType = "duplicate"
	ErrorTypeInvalidScope ErrorType = "invalid_scope"
)

// TopicError represents structured errors in the topic management system.
type TopicError struct {
	Type    ErrorType `json:"type"`
	Topic   string    `json:"topic"`
	Module  string    `json:"module"`
	Message string    `json:"message"`
}

func (e *TopicError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("topic %q (module %s): %s", e.Topic, e.Module, e.Message)
	}
	return fmt.Sprintf("topic %q: %s", e.Topic, e.Message)
}

// validate checks a topic's name shape: lowercase dot separated segments,
// and for module topics a prefix matching the module.
func validate(t Topic) error {
	name := t.Name()
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return &TopicError{Type: ErrorTypeInvalidName, Topic: name, Module: t.Module(), Message: "name must be dot separated segments"}
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-') {
			return &TopicError{Type: ErrorTypeInvalidName, Topic: name, Module: t.Module(), Message: fmt.Sprintf("invalid character %q", r)}
		}
	}
	switch t.Scope() {
	case ScopeFramework:
		if t.Module() != "" {
			return &TopicError{Type: ErrorTypeInvalidScope, Topic: name, Module: t.Module(), Message: "framework topics have no module"}
		}
	case ScopeModule:
		if t.Module() == "" || !strings.HasPrefix(name, t.Module()+".") {
			return &TopicError{Type: ErrorTypeInvalidScope, Topic: name, Module: t.Module(), Message: "module topics must be prefixed with their module"}
		}
	default:
		return &TopicError{Type: ErrorTypeInvalidScope, Topic: name, Message: "unknown scope"}
	}
	return nil
}
