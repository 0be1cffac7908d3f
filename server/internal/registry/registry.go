package registry

import (
	"sort"
	"sync"
)

// Subscriber is one live connection that can receive published messages.
// Implementations must be comparable (pointer types): membership is keyed by
// identity, not content.
type Subscriber interface {
	ID() string
	Send(message string) error
}

// TopicInfo describes one topic and how many subscribers it has.
type TopicInfo struct {
	Topic       string `json:"topic"`
	Subscribers int    `json:"subscribers"`
}

// Registry is a thread-safe topic -> subscriber-set table.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		topics: make(map[string]map[Subscriber]struct{}),
	}
}

// Subscribe adds s to topic. It reports whether the membership is new;
// subscribing twice is a no-op. Empty topics are ignored.
func (r *Registry) Subscribe(topic string, s Subscriber) bool {
	if topic == "" || s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[topic]
	if !ok {
		set = make(map[Subscriber]struct{})
		r.topics[topic] = set
	}
	if _, dup := set[s]; dup {
		return false
	}
	set[s] = struct{}{}
	return true
}

// Unsubscribe removes s from topic and reports whether it was a member.
// Unknown topics and non-members are a no-op. A topic left without
// subscribers is deleted.
func (r *Registry) Unsubscribe(topic string, s Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[topic]
	if !ok {
		return false
	}
	if _, member := set[s]; !member {
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.topics, topic)
	}
	return true
}

// Snapshot returns a point-in-time copy of topic's subscribers. The slice is
// never nil and is safe to iterate while the registry keeps changing.
func (r *Registry) Snapshot(topic string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.topics[topic]
	out := make([]Subscriber, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Count returns the number of subscribers on topic.
func (r *Registry) Count(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// Len returns the number of topics that currently have subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// Topics lists every live topic with its subscriber count, sorted by name.
func (r *Registry) Topics() []TopicInfo {
	r.mu.RLock()
	out := make([]TopicInfo, 0, len(r.topics))
	for name, set := range r.topics {
		out = append(out, TopicInfo{Topic: name, Subscribers: len(set)})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// TopicsOf returns the sorted topics s is subscribed to. It scans every topic
// and is meant for diagnostics and tests, not the publish path.
func (r *Registry) TopicsOf(s Subscriber) []string {
	r.mu.RLock()
	var out []string
	for name, set := range r.topics {
		if _, ok := set[s]; ok {
			out = append(out, name)
		}
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}
