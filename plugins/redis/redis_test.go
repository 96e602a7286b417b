package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/miladsoleymani/eventgate/broker"
	"github.com/miladsoleymani/eventgate/core"
)

func newTestProducer(t *testing.T, fns ...Option) (*Producer, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	p := New(&redis.Options{Addr: s.Addr()}, fns...)
	t.Cleanup(func() { _ = p.Close() })
	return p, s
}

func testEvent(id string) core.PageEvent {
	return core.PageEvent{ID: id, Topic: "clicks", Name: "home", Timestamp: time.Unix(1700000000, 0).UTC()}
}

func wait(t *testing.T, fut *core.Future) (core.Ack, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ack, err := fut.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("future did not resolve")
	}
	return ack, err
}

func TestSend(t *testing.T) {
	p, s := newTestProducer(t)

	ack, err := wait(t, p.Send(context.Background(), "clicks", "home", testEvent("ev-1")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.ID == "" || ack.Offset <= 0 {
		t.Errorf("ack = %+v", ack)
	}

	entries, err := s.Stream("clicks")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != ack.ID {
		t.Fatalf("entries = %+v", entries)
	}
	values := entries[0].Values
	fields := map[string]string{}
	for i := 0; i+1 < len(values); i += 2 {
		fields[values[i]] = values[i+1]
	}
	if fields[FieldID] != "ev-1" || fields[FieldKey] != "home" || fields[FieldType] != "application/json" {
		t.Errorf("fields = %v", fields)
	}
}

func TestSend_MissingStream(t *testing.T) {
	p, _ := newTestProducer(t, WithAutoCreate(false))

	_, err := wait(t, p.Send(context.Background(), "nowhere", "", testEvent("ev-1")))
	if core.KindOf(err) != core.KindTopicNotFound {
		t.Fatalf("kind = %v, want TopicNotFound (err %v)", core.KindOf(err), err)
	}
}

func TestSend_WrongType(t *testing.T) {
	p, s := newTestProducer(t)
	if err := s.Set("clicks", "not a stream"); err != nil {
		t.Fatal(err)
	}

	_, err := wait(t, p.Send(context.Background(), "clicks", "", testEvent("ev-1")))
	if core.KindOf(err) != core.KindTopicNotFound {
		t.Fatalf("kind = %v, want TopicNotFound", core.KindOf(err))
	}
}

func TestSend_ServerDown(t *testing.T) {
	p, s := newTestProducer(t, WithMaxAttempts(2), WithBackoff(time.Millisecond))
	s.Close()

	_, err := wait(t, p.Send(context.Background(), "clicks", "", testEvent("ev-1")))
	if core.KindOf(err) != core.KindBrokerUnavailable {
		t.Fatalf("kind = %v, want BrokerUnavailable", core.KindOf(err))
	}
}

type brokenCodec struct{}

func (brokenCodec) ContentType() string                   { return "application/broken" }
func (brokenCodec) Encode(core.PageEvent) ([]byte, error) { return nil, errors.New("cannot encode") }

func TestSend_EncodeFailure(t *testing.T) {
	p, _ := newTestProducer(t, WithCodec(brokenCodec{}))

	_, err := wait(t, p.Send(context.Background(), "clicks", "", testEvent("ev-1")))
	var ge *core.Error
	if !errors.As(err, &ge) || ge.Kind != core.KindSerializationError || ge.EventID != "ev-1" {
		t.Fatalf("err = %v", err)
	}
}

func TestSend_CallerCancelDoesNotRetract(t *testing.T) {
	p, s := newTestProducer(t)
	ctx, cancel := context.WithCancel(context.Background())
	fut := p.Send(ctx, "clicks", "", testEvent("ev-1"))
	cancel()

	if _, err := wait(t, fut); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, _ := s.Stream("clicks")
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestSend_Concurrent(t *testing.T) {
	p, s := newTestProducer(t, WithWorkers(4))

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := wait(t, p.Send(context.Background(), "clicks", "", testEvent("ev-"+strconv.Itoa(i))))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	entries, _ := s.Stream("clicks")
	if len(entries) != n {
		t.Errorf("entries = %d, want %d", len(entries), n)
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d", p.Pending())
	}
}

func TestSend_BufferFull(t *testing.T) {
	p, _ := newTestProducer(t, WithQueueSize(1))
	p.inflight.Store(1)

	_, err := p.Send(context.Background(), "clicks", "", testEvent("ev-1")).Result()
	if !errors.Is(err, core.ErrBufferFull) {
		t.Fatalf("err = %v, want ErrBufferFull", err)
	}
	p.inflight.Store(0)
}

func TestSend_Closed(t *testing.T) {
	p, _ := newTestProducer(t)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := p.Send(context.Background(), "clicks", "", testEvent("ev-1")).Result()
	if !errors.Is(err, core.ErrProducerClosed) {
		t.Fatalf("err = %v, want ErrProducerClosed", err)
	}
}

func TestPing(t *testing.T) {
	p, s := newTestProducer(t)
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	s.Close()
	if err := p.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error after server shutdown")
	}
}

func TestAckFromID(t *testing.T) {
	ack := ackFromID("1700000000000-3")
	if ack.Offset != 1700000000000 || ack.ID != "1700000000000-3" {
		t.Errorf("ack = %+v", ack)
	}
	if ack := ackFromID("garbage"); ack.Offset != 0 {
		t.Errorf("ack = %+v", ack)
	}
}

func TestOptsFromConfig(t *testing.T) {
	cfg := broker.Config{Extra: map[string]any{
		"workers":      int64(2),
		"queue_size":   int64(10),
		"max_attempts": int64(5),
		"backoff":      "5ms",
		"max_len":      int64(1000),
		"auto_create":  false,
	}}
	o := defaults()
	for _, fn := range optsFromConfig(cfg) {
		fn(&o)
	}
	if o.workers != 2 || o.queueSize != 10 || o.maxAttempts != 5 || o.backoff != 5*time.Millisecond ||
		o.maxLen != 1000 || o.autoCreate {
		t.Errorf("options = %+v", o)
	}
}
