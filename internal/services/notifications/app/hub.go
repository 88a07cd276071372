package app

import (
	"sync"

	"github.com/studycommons/studycommons/internal/services/notifications/storage"
)

// Subscriber receives live notifications for one user's feed.
type Subscriber interface {
	Deliver(n storage.Notification)
}

// Hub fans persisted notifications out to connected feed subscribers.
type Hub struct {
	mu    sync.Mutex
	feeds map[string]map[Subscriber]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{feeds: map[string]map[Subscriber]struct{}{}}
}

// Subscribe registers a subscriber for a user's feed.
func (h *Hub) Subscribe(userID string, sub Subscriber) {
	if userID == "" || sub == nil {
		return
	}
	h.mu.Lock()
	feed, ok := h.feeds[userID]
	if !ok {
		feed = map[Subscriber]struct{}{}
		h.feeds[userID] = feed
	}
	feed[sub] = struct{}{}
	h.mu.Unlock()
}

// Unsubscribe removes a subscriber. Empty feeds are dropped.
func (h *Hub) Unsubscribe(userID string, sub Subscriber) {
	h.mu.Lock()
	if feed, ok := h.feeds[userID]; ok {
		delete(feed, sub)
		if len(feed) == 0 {
			delete(h.feeds, userID)
		}
	}
	h.mu.Unlock()
}

// HasSubscribers reports whether a user's feed has live subscribers.
func (h *Hub) HasSubscribers(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.feeds[userID]) > 0
}

// Publish delivers a notification to every subscriber of its user's feed.
// Delivery runs outside the hub lock.
func (h *Hub) Publish(n storage.Notification) {
	h.mu.Lock()
	subscribers := make([]Subscriber, 0, len(h.feeds[n.UserID]))
	for sub := range h.feeds[n.UserID] {
		subscribers = append(subscribers, sub)
	}
	h.mu.Unlock()

	for _, sub := range subscribers {
		sub.Deliver(n)
	}
}
