// Package ws streams audit events to admin dashboards over WebSocket.
// The feed is a best-effort mirror of the audit queue: a slow subscriber
// loses events rather than slowing the pipeline down.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/audit"
	"github.com/relaydesk/tenantguard/internal/metrics"
)

const (
	subscriberBuffer = 64
	maxSubscribers   = 100
)

// Feed fans audit entries out to live subscribers. Implements
// audit.Notifier; Publish never blocks.
type Feed struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
	log  *logrus.Logger
}

// NewFeed creates a Feed.
func NewFeed(log *logrus.Logger) *Feed {
	return &Feed{
		subs: make(map[chan []byte]struct{}),
		log:  log,
	}
}

// Publish marshals the entry and offers it to every subscriber. Full
// subscriber buffers drop the event for that subscriber only.
func (f *Feed) Publish(e audit.Entry) {
	f.mu.RLock()
	if len(f.subs) == 0 {
		f.mu.RUnlock()

		return
	}
	f.mu.RUnlock()

	msg, err := json.Marshal(e)
	if err != nil {
		f.log.WithError(err).Error("failed to marshal audit event for feed")

		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe registers a new subscriber channel. Returns nil when the
// subscriber cap is reached.
func (f *Feed) Subscribe() chan []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.subs) >= maxSubscribers {
		f.log.Warn("audit feed subscriber limit reached")

		return nil
	}

	ch := make(chan []byte, subscriberBuffer)
	f.subs[ch] = struct{}{}
	metrics.FeedConnections.Set(float64(len(f.subs)))

	return ch
}

// Unsubscribe removes a subscriber channel.
func (f *Feed) Unsubscribe(ch chan []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.subs, ch)
	metrics.FeedConnections.Set(float64(len(f.subs)))
}

// SubscriberCount returns the number of active subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.subs)
}

// Drain drops all subscribers, used during shutdown.
func (f *Feed) Drain(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subs = make(map[chan []byte]struct{})
	metrics.FeedConnections.Set(0)
}
