package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/eventgate/broker"
	"github.com/miladsoleymani/eventgate/core"
)

type brokenCodec struct{}

func (brokenCodec) ContentType() string                   { return "application/broken" }
func (brokenCodec) Encode(core.PageEvent) ([]byte, error) { return nil, errors.New("cannot encode") }

func testEvent() core.PageEvent {
	return core.PageEvent{ID: "ev-1", Topic: "clicks", Name: "home", Timestamp: time.Unix(1700000000, 0).UTC()}
}

func TestNew_RequiresBrokers(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestNew_WriterSettings(t *testing.T) {
	p, err := New([]string{"localhost:9092"}, WithBatchSize(7), WithMaxAttempts(2), WithClientID("gw"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()

	w := p.writer
	if !w.Async || w.Completion == nil {
		t.Error("writer must be async with a completion callback")
	}
	if w.BatchSize != 7 || w.MaxAttempts != 2 || w.RequiredAcks != kafka.RequireAll {
		t.Errorf("writer = batch %d attempts %d acks %v", w.BatchSize, w.MaxAttempts, w.RequiredAcks)
	}
	tr, ok := w.Transport.(*kafka.Transport)
	if !ok || tr.ClientID != "gw" {
		t.Errorf("transport = %#v", w.Transport)
	}
}

func TestSend_Closed(t *testing.T) {
	p, _ := New([]string{"localhost:9092"})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := p.Send(context.Background(), "clicks", "home", testEvent()).Result()
	if !errors.Is(err, core.ErrProducerClosed) {
		t.Fatalf("err = %v, want ErrProducerClosed", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestSend_EncodeFailure(t *testing.T) {
	p, _ := New([]string{"localhost:9092"}, WithCodec(brokenCodec{}))
	defer p.Close()

	_, err := p.Send(context.Background(), "clicks", "home", testEvent()).Result()
	if core.KindOf(err) != core.KindSerializationError {
		t.Fatalf("kind = %v, want SerializationError", core.KindOf(err))
	}
}

func TestComplete(t *testing.T) {
	p := &Producer{}
	ok, failed := core.NewFuture(), core.NewFuture()

	p.complete([]kafka.Message{
		{Partition: 2, Offset: 41, WriterData: ok},
		{Partition: 2, Offset: 42},
	}, nil)
	ack, err := ok.Result()
	if err != nil || ack.Partition != 2 || ack.Offset != 41 {
		t.Errorf("ack = %+v, err = %v", ack, err)
	}

	p.complete([]kafka.Message{{WriterData: failed}}, kafka.UnknownTopicOrPartition)
	if _, err := failed.Result(); core.KindOf(err) != core.KindTopicNotFound {
		t.Errorf("kind = %v, want TopicNotFound", core.KindOf(err))
	}
}

func TestComplete_PerMessageErrors(t *testing.T) {
	p := &Producer{}
	a, b := core.NewFuture(), core.NewFuture()

	p.complete([]kafka.Message{{WriterData: a}, {WriterData: b}},
		kafka.WriteErrors{kafka.MessageSizeTooLarge, kafka.LeaderNotAvailable})

	if _, err := a.Result(); core.KindOf(err) != core.KindSerializationError {
		t.Errorf("a kind = %v", core.KindOf(err))
	}
	if _, err := b.Result(); core.KindOf(err) != core.KindBrokerUnavailable {
		t.Errorf("b kind = %v", core.KindOf(err))
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want core.Kind
	}{
		{kafka.UnknownTopicOrPartition, core.KindTopicNotFound},
		{fmt.Errorf("wrapped: %w", kafka.UnknownTopicOrPartition), core.KindTopicNotFound},
		{kafka.MessageSizeTooLarge, core.KindSerializationError},
		{kafka.InvalidRecord, core.KindSerializationError},
		{kafka.MessageTooLargeError{}, core.KindSerializationError},
		{kafka.RequestTimedOut, core.KindTimeout},
		{context.DeadlineExceeded, core.KindTimeout},
		{timeoutErr{}, core.KindTimeout},
		{kafka.LeaderNotAvailable, core.KindBrokerUnavailable},
		{errors.New("connection refused"), core.KindBrokerUnavailable},
	}
	for _, tt := range tests {
		if got := core.KindOf(classify(tt.err)); got != tt.want {
			t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestToHeaders(t *testing.T) {
	h := toHeaders(core.Headers(nil, testEvent()))
	if len(h) != 2 || h[0].Key != core.HeaderContentType || h[1].Key != core.HeaderEventID || string(h[1].Value) != "ev-1" {
		t.Errorf("headers = %+v", h)
	}
	if toHeaders(nil) != nil {
		t.Error("empty map should give nil headers")
	}
}

func TestOptsFromConfig(t *testing.T) {
	cfg := broker.Config{
		ClientID: "gw",
		Extra: map[string]any{
			"batch_size":         int64(5),
			"batch_timeout":      "20ms",
			"max_attempts":       int64(9),
			"write_timeout":      "3s",
			"auto_create_topics": true,
			"balancer":           "round_robin",
		},
	}
	o := defaults()
	for _, fn := range optsFromConfig(cfg) {
		fn(&o)
	}
	if o.batchSize != 5 || o.batchTimeout != 20*time.Millisecond || o.maxAttempts != 9 ||
		o.writeTimeout != 3*time.Second || !o.autoCreate || o.clientID != "gw" {
		t.Errorf("options = %+v", o)
	}
	if _, ok := o.balancer.(*kafka.RoundRobin); !ok {
		t.Errorf("balancer = %T", o.balancer)
	}
}
