package ws_test

import (
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/audit"
	"github.com/relaydesk/tenantguard/internal/ws"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

func TestFeedPublishReachesSubscribers(t *testing.T) {
	t.Parallel()

	feed := ws.NewFeed(testLogger())

	ch := feed.Subscribe()
	if ch == nil {
		t.Fatal("subscribe returned nil")
	}

	feed.Publish(audit.Entry{Action: audit.ActionViolation, RequestID: "req-1"})

	select {
	case msg := <-ch:
		var entry audit.Entry
		if err := json.Unmarshal(msg, &entry); err != nil {
			t.Fatalf("invalid JSON on feed: %v", err)
		}
		if entry.Action != audit.ActionViolation || entry.RequestID != "req-1" {
			t.Errorf("unexpected entry: %+v", entry)
		}
	default:
		t.Fatal("no message delivered")
	}
}

func TestFeedDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	feed := ws.NewFeed(testLogger())
	ch := feed.Subscribe()

	// Publish past the subscriber buffer; the excess must be dropped
	// without blocking the publisher.
	for i := 0; i < 200; i++ {
		feed.Publish(audit.Entry{Action: audit.ActionAccessGranted})
	}

	if len(ch) == 0 || len(ch) > 64 {
		t.Errorf("buffered messages = %d, want 1..64", len(ch))
	}
}

func TestFeedUnsubscribe(t *testing.T) {
	t.Parallel()

	feed := ws.NewFeed(testLogger())

	ch := feed.Subscribe()
	if feed.SubscriberCount() != 1 {
		t.Fatalf("count = %d, want 1", feed.SubscriberCount())
	}

	feed.Unsubscribe(ch)
	if feed.SubscriberCount() != 0 {
		t.Errorf("count = %d, want 0", feed.SubscriberCount())
	}

	feed.Publish(audit.Entry{Action: audit.ActionViolation})
	if len(ch) != 0 {
		t.Error("unsubscribed channel received a message")
	}
}

func TestFeedSubscriberCap(t *testing.T) {
	t.Parallel()

	feed := ws.NewFeed(testLogger())

	for i := 0; i < 100; i++ {
		if ch := feed.Subscribe(); ch == nil {
			t.Fatalf("subscriber %d rejected below the cap", i)
		}
	}

	if ch := feed.Subscribe(); ch != nil {
		t.Error("subscriber accepted past the cap")
	}
}

func TestFeedDrain(t *testing.T) {
	t.Parallel()

	feed := ws.NewFeed(testLogger())
	feed.Subscribe()
	feed.Subscribe()

	feed.Drain(t.Context())

	if feed.SubscriberCount() != 0 {
		t.Errorf("count = %d after drain", feed.SubscriberCount())
	}
}
