// Package events implements the in-process broadcaster that fans task and
// earnings changes out to interested parts of the process (API hubs, the
// metrics layer, header counters) without them polling the store.
//
// Delivery is synchronous and fire-and-forget: a subscriber that panics
// must not stop the remaining subscribers or the publisher.
package events

import (
	"log"
	"sort"
	"sync"
)

// Topic is one of the closed set of broadcast channels.
type Topic string

const (
	TopicTaskCompleted   Topic = "TaskCompleted"
	TopicOngoingUpdated  Topic = "OngoingUpdated"
	TopicEarningsUpdated Topic = "EarningsUpdated"
)

// TaskCompleted is the payload published on TopicTaskCompleted.
type TaskCompleted struct {
	TaskID      string `json:"task_id"`
	DeliveryFee int64  `json:"delivery_fee"`
}

// Broadcaster is a topic-keyed publish/subscribe hub. The zero value is
// not usable; call New.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic]map[int]func(payload any)
}

// New creates an empty broadcaster.
func New() *Broadcaster {
	return &Broadcaster{subs: make(map[Topic]map[int]func(any))}
}

// Subscribe registers fn for a topic and returns an unsubscribe func.
func (b *Broadcaster) Subscribe(topic Topic, fn func(payload any)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(any))
	}
	b.subs[topic][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish delivers payload to every subscriber of topic. Subscribers run
// in registration order on the caller's goroutine; a panic in one is
// recovered and logged so the rest still run.
func (b *Broadcaster) Publish(topic Topic, payload any) {
	b.mu.RLock()
	fns := make([]func(any), 0, len(b.subs[topic]))
	ids := make([]int, 0, len(b.subs[topic]))
	for id := range b.subs[topic] {
		ids = append(ids, id)
	}
	// map order is random; deliver in subscription order
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, b.subs[topic][id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		safeCall(topic, fn, payload)
	}
}

// SubscriberCount returns how many subscribers a topic currently has.
func (b *Broadcaster) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func safeCall(topic Topic, fn func(any), payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[events] subscriber panic on %s: %v", topic, r)
		}
	}()
	fn(payload)
}
