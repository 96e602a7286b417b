// Package ledger keeps a durable record of publish outcomes.
//
// Outcomes are queued without blocking the publish path and written in
// batches, flushed when a batch fills up or the batch wait elapses. Operators
// use the ledger to reconcile Timeout and Canceled outcomes, whose delivery
// is unknown at response time.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/miladsoleymani/eventgate/core"
)

// Status is the settled state of one publish.
type Status string

const (
	StatusAcknowledged Status = "acknowledged"
	StatusFailed       Status = "failed"
	StatusUnknown      Status = "unknown"
)

// Entry is one recorded outcome, keyed by event id.
type Entry struct {
	EventID    string    `json:"event_id"`
	Topic      string    `json:"topic"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Kind       string    `json:"kind,omitempty"`
	Partition  int       `json:"partition"`
	Offset     int64     `json:"offset"`
	AckID      string    `json:"ack_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	EventTime  time.Time `json:"event_time"`
	RecordedAt time.Time `json:"recorded_at"`
}

// EntryFrom builds the entry for one outcome. It reports false when no
// event was built, since there is nothing to reconcile.
func EntryFrom(req core.Request, rcpt core.Receipt, err error, now time.Time) (Entry, bool) {
	if err == nil {
		return Entry{
			EventID:    rcpt.Event.ID,
			Topic:      rcpt.Event.Topic,
			Name:       rcpt.Event.Name,
			Status:     StatusAcknowledged,
			Partition:  rcpt.Ack.Partition,
			Offset:     rcpt.Ack.Offset,
			AckID:      rcpt.Ack.ID,
			EventTime:  rcpt.Event.Timestamp,
			RecordedAt: now,
		}, rcpt.Event.ID != ""
	}

	var ge *core.Error
	if !errors.As(err, &ge) || ge.EventID == "" {
		return Entry{}, false
	}
	status := StatusFailed
	if ge.OutcomeUnknown() {
		status = StatusUnknown
	}
	return Entry{
		EventID:    ge.EventID,
		Topic:      req.Topic,
		Name:       req.Name,
		Status:     status,
		Kind:       ge.Kind.String(),
		Detail:     err.Error(),
		RecordedAt: now,
	}, true
}

// Store persists batches of entries. Writing an entry whose event id is
// already stored replaces it or is a no-op; it is never an error.
type Store interface {
	WriteBatch(ctx context.Context, entries []Entry) (int64, error)
	Close() error
}

type (
	// Opts contains configuration for a Ledger.
	Opts struct {
		Store     Store
		Logg      *slog.Logger
		QueueSize int
		BatchSize int
		BatchWait time.Duration

		// OnDrop is called for every entry dropped on a full queue.
		OnDrop func()
		Now    func() time.Time
	}

	// Ledger batches outcomes into a Store.
	Ledger struct {
		store     Store
		logg      *slog.Logger
		queue     chan Entry
		batchSize int
		batchWait time.Duration
		onDrop    func()
		now       func() time.Time
		done      chan struct{}
	}
)

// New creates a Ledger. Start must be called before entries are written.
func New(o Opts) *Ledger {
	l := &Ledger{
		store:     o.Store,
		logg:      o.Logg,
		queue:     make(chan Entry, max(o.QueueSize, 1)),
		batchSize: max(o.BatchSize, 1),
		batchWait: o.BatchWait,
		onDrop:    o.OnDrop,
		now:       o.Now,
		done:      make(chan struct{}),
	}
	if l.logg == nil {
		l.logg = slog.Default()
	}
	if l.batchWait <= 0 {
		l.batchWait = time.Second
	}
	if l.now == nil {
		l.now = func() time.Time { return time.Now().UTC() }
	}
	return l
}

// Start runs the batching loop until ctx is done, then flushes what is queued.
func (l *Ledger) Start(ctx context.Context) {
	go func() {
		defer close(l.done)

		batch := make([]Entry, 0, l.batchSize)
		t := time.NewTimer(l.batchWait)
		defer t.Stop()

		resetTimer := func() {
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(l.batchWait)
		}

		flush := func(ctx context.Context) {
			if len(batch) == 0 {
				resetTimer()
				return
			}
			written, err := l.store.WriteBatch(ctx, batch)
			if err != nil {
				l.logg.Error("ledger batch write failed", "dropped", len(batch), "error", err)
			} else {
				l.logg.Debug("ledger batch written", "written", written, "size", len(batch))
			}
			batch = batch[:0]
			resetTimer()
		}

		for {
			select {
			case <-ctx.Done():
				drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				for drained := false; !drained; {
					select {
					case e := <-l.queue:
						batch = append(batch, e)
						if len(batch) >= l.batchSize {
							flush(drainCtx)
						}
					default:
						drained = true
					}
				}
				flush(drainCtx)
				cancel()
				return
			case e := <-l.queue:
				batch = append(batch, e)
				if len(batch) >= l.batchSize {
					flush(ctx)
				}
			case <-t.C:
				flush(ctx)
			}
		}
	}()
}

// Wait blocks until the loop started by Start has flushed and exited.
func (l *Ledger) Wait() {
	<-l.done
}

// Enqueue queues e without blocking. It reports false when the queue is full.
func (l *Ledger) Enqueue(e Entry) bool {
	select {
	case l.queue <- e:
		return true
	default:
		return false
	}
}

// RecordOutcome queues the outcome of one publish. It implements
// middleware.OutcomeRecorder.
func (l *Ledger) RecordOutcome(req core.Request, rcpt core.Receipt, err error) {
	e, ok := EntryFrom(req, rcpt, err, l.now())
	if !ok {
		return
	}
	if !l.Enqueue(e) {
		l.logg.Warn("ledger queue full, outcome dropped", "event_id", e.EventID, "status", e.Status)
		if l.onDrop != nil {
			l.onDrop()
		}
	}
}
