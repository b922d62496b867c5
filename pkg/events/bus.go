// Package events implements the best-effort Event Bus fan-out of
// task-update and task-progress notifications described in §4.7.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Progress is the payload of a task-progress event.
type Progress struct {
	TaskID  int64
	Percent int
	Speed   string
}

// Subscription is returned by Subscribe and is used to Unsubscribe later.
type Subscription string

// Bus fans task-update and task-progress notifications out to any
// number of observers. Delivery is best-effort: a slow or absent
// observer never blocks a run, and events may be dropped if no observer
// is attached.
type Bus struct {
	mu           sync.RWMutex
	updateSubs   map[Subscription]chan<- struct{}
	progressSubs map[Subscription]chan<- Progress
}

// New creates an empty Event Bus.
func New() *Bus {
	return &Bus{
		updateSubs:   make(map[Subscription]chan<- struct{}),
		progressSubs: make(map[Subscription]chan<- Progress),
	}
}

// SubscribeUpdates registers ch to receive a signal on every task-update
// event. The channel should be buffered; a full channel drops the event
// rather than blocking the publisher.
func (b *Bus) SubscribeUpdates(ch chan<- struct{}) Subscription {
	sub := Subscription(uuid.NewString())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateSubs[sub] = ch
	return sub
}

// UnsubscribeUpdates removes a subscription registered with SubscribeUpdates.
func (b *Bus) UnsubscribeUpdates(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.updateSubs, sub)
}

// SubscribeProgress registers ch to receive task-progress events.
func (b *Bus) SubscribeProgress(ch chan<- Progress) Subscription {
	sub := Subscription(uuid.NewString())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progressSubs[sub] = ch
	return sub
}

// UnsubscribeProgress removes a subscription registered with SubscribeProgress.
func (b *Bus) UnsubscribeProgress(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.progressSubs, sub)
}

// PublishUpdate notifies all update observers that some task's state
// changed. Observers are expected to re-fetch, not to trust a payload.
func (b *Bus) PublishUpdate() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.updateSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// PublishProgress notifies all progress observers of one sample from an
// active run.
func (b *Bus) PublishProgress(p Progress) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.progressSubs {
		select {
		case ch <- p:
		default:
		}
	}
}
