package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/metrics"
)

const (
	queueBuffer   = 256
	appendTimeout = 5 * time.Second
)

// Sink persists audit entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Notifier receives entries after they are accepted for persistence, for
// live fan-out to admin dashboards. Implementations must not block.
type Notifier interface {
	Publish(e Entry)
}

// Recorder appends entries through a buffered queue drained by a single
// worker goroutine, so the pipeline never waits on the sink. A full queue
// drops the entry with a warning; a sink failure is logged and counted but
// never surfaces to the request.
type Recorder struct {
	queue    chan Entry
	sink     Sink
	notifier Notifier
	log      *logrus.Logger
	done     chan struct{}
}

// NewRecorder creates a Recorder and starts its worker. The context bounds
// the worker's lifetime; notifier may be nil.
func NewRecorder(ctx context.Context, sink Sink, notifier Notifier, log *logrus.Logger) *Recorder {
	r := &Recorder{
		queue:    make(chan Entry, queueBuffer),
		sink:     sink,
		notifier: notifier,
		log:      log,
		done:     make(chan struct{}),
	}
	go r.run(ctx)

	return r
}

// Record enqueues an entry. It never blocks: if the queue is full the
// entry is dropped and counted, because audit must not become a request
// blocker.
func (r *Recorder) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	select {
	case r.queue <- e:
	default:
		metrics.AuditDropped.Inc()
		r.log.WithFields(logrus.Fields{
			"action":     e.Action,
			"request_id": e.RequestID,
		}).Warn("audit queue full, dropping entry")
	}
}

// Close stops the worker and persists everything still queued. Entries
// recorded after the worker's context was cancelled are drained here, so
// nothing is lost between context cancellation and server shutdown. Call
// after the server has stopped accepting requests.
func (r *Recorder) Close() {
	close(r.queue)
	<-r.done
	r.drain()
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.drain()

			return
		case e, ok := <-r.queue:
			if !ok {
				return
			}
			r.append(e)
		}
	}
}

// drain persists whatever is still queued after shutdown begins.
func (r *Recorder) drain() {
	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				return
			}
			r.append(e)
		default:
			return
		}
	}
}

func (r *Recorder) append(e Entry) {
	if r.notifier != nil {
		r.notifier.Publish(e)
	}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := r.sink.Append(ctx, e); err != nil {
		metrics.AuditFailures.Inc()
		r.log.WithError(err).WithFields(logrus.Fields{
			"action":     e.Action,
			"request_id": e.RequestID,
		}).Error("failed to persist audit entry")
	}
}
