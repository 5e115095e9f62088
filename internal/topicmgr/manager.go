package topicmgr

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Entry is a registered topic plus when it was registered.
type Entry struct {
	Topic        Topic
	RegisteredAt time.Time
}

// Manager is a concurrency safe topic catalogue.
type Manager struct {
	mu     sync.RWMutex
	topics map[string]Entry
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{topics: make(map[string]Entry)}
}

// DefineFramework creates a framework level topic.
func DefineFramework(config TopicConfig) Topic {
	return &TypedTopic{
		name:        config.Name,
		description: config.Description,
		scope:       ScopeFramework,
		metadata:    config.Metadata,
	}
}

// DefineModule creates a module topic. An empty Module is taken from the
// first segment of Name.
func DefineModule(config TopicConfig) Topic {
	module := config.Module
	if module == "" {
		module, _, _ = strings.Cut(config.Name, ".")
	}
	return &TypedTopic{
		name:        config.Name,
		module:      module,
		description: config.Description,
		scope:       ScopeModule,
		metadata:    config.Metadata,
	}
}

// Register validates and adds a topic. Names are unique.
func (m *Manager) Register(topic Topic) error {
	if err := validate(topic); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.topics[topic.Name()]; ok {
		return &TopicError{Type: ErrorTypeDuplicate, Topic: topic.Name(), Module: topic.Module(), Message: "already registered"}
	}
	m.topics[topic.Name()] = Entry{Topic: topic, RegisteredAt: time.Now()}
	return nil
}

// MustRegister registers a topic and panics on failure. Meant for
// package-level topic declarations.
func (m *Manager) MustRegister(topic Topic) {
	if err := m.Register(topic); err != nil {
		panic(err)
	}
}

// Get looks up a topic by name.
func (m *Manager) Get(name string) (Topic, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.topics[name]
	return e.Topic, ok
}

// List returns every topic sorted by name.
func (m *Manager) List() []Topic {
	return m.filter(func(Topic) bool { return true })
}

// ListByModule returns the topics owned by module.
func (m *Manager) ListByModule(module string) []Topic {
	return m.filter(func(t Topic) bool { return t.Module() == module })
}

// ListByScope returns the topics in scope.
func (m *Manager) ListByScope(scope TopicScope) []Topic {
	return m.filter(func(t Topic) bool { return t.Scope() == scope })
}

// ListModules returns the distinct module names, sorted.
func (m *Manager) ListModules() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, e := range m.topics {
		if mod := e.Topic.Module(); mod != "" && !slices.Contains(out, mod) {
			out = append(out, mod)
		}
	}
	slices.Sort(out)
	return out
}

// Count returns the number of registered topics.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics)
}

func (m *Manager) filter(keep func(Topic) bool) []Topic {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Topic, 0, len(m.topics))
	for _, e := range m.topics {
		if keep(e.Topic) {
			out = append(out, e.Topic)
		}
	}
	slices.SortFunc(out, func(a, b Topic) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

var defaultManager = NewManager()

// Default returns the process-wide manager used by package-level topic
// declarations.
func Default() *Manager { return defaultManager }
