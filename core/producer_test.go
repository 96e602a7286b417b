package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_ResolvesOnce(t *testing.T) {
	f := NewFuture()
	if !f.Resolve(Ack{Partition: 1, Offset: 7}) {
		t.Fatal("first Resolve should win")
	}
	if f.Resolve(Ack{Offset: 99}) {
		t.Error("second Resolve should lose")
	}
	if f.Fail(errors.New("late")) {
		t.Error("Fail after Resolve should lose")
	}

	ack, err := f.Result()
	if err != nil || ack.Offset != 7 || ack.Partition != 1 {
		t.Errorf("Result() = %+v, %v", ack, err)
	}
}

func TestFuture_Failed(t *testing.T) {
	boom := errors.New("boom")
	f := Failed(boom)
	select {
	case <-f.Done():
	default:
		t.Fatal("Failed future should be done")
	}
	if _, err := f.Result(); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestFuture_WaitContext(t *testing.T) {
	f := NewFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait err = %v, want deadline exceeded", err)
	}

	go f.Resolve(Ack{Offset: 3})
	ack, err := f.Wait(context.Background())
	if err != nil || ack.Offset != 3 {
		t.Errorf("Wait() = %+v, %v", ack, err)
	}
}

func TestAsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed", NewError(KindTopicNotFound, "nope"), KindTopicNotFound},
		{"wrapped typed", errors.Join(errors.New("ctx"), NewError(KindSerializationError, "bad")), KindSerializationError},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"closed", ErrProducerClosed, KindBrokerUnavailable},
		{"buffer", ErrBufferFull, KindBrokerUnavailable},
		{"other", errors.New("connection refused"), KindBrokerUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AsError(tt.err).Kind; got != tt.want {
				t.Errorf("AsError(%v).Kind = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
	if AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}
}

func TestKind(t *testing.T) {
	if !KindTimeout.OutcomeUnknown() || !KindCanceled.OutcomeUnknown() {
		t.Error("timeout and canceled leave the outcome unknown")
	}
	for _, k := range []Kind{KindInvalidArgument, KindBrokerUnavailable, KindTopicNotFound, KindSerializationError} {
		if k.OutcomeUnknown() {
			t.Errorf("%v should be definite", k)
		}
	}
	if !KindUnknown.OutcomeUnknown() {
		t.Error("an unclassified failure may have been sent")
	}
	if KindTopicNotFound.String() != "TopicNotFound" {
		t.Errorf("String() = %q", KindTopicNotFound.String())
	}
	if Kind(42).String() != "Kind(42)" {
		t.Errorf("String() = %q", Kind(42).String())
	}
}

func TestError_OutcomeUnknown(t *testing.T) {
	tests := []struct {
		err  *Error
		want bool
	}{
		{&Error{Kind: KindTimeout, EventID: "ev"}, true},
		{&Error{Kind: KindCanceled, EventID: "ev"}, true},
		{&Error{Kind: KindCanceled}, false},
		{&Error{Kind: KindTimeout}, false},
		{&Error{Kind: KindUnknown}, true},
		{&Error{Kind: KindBrokerUnavailable, EventID: "ev"}, false},
	}
	for _, tt := range tests {
		if got := tt.err.OutcomeUnknown(); got != tt.want {
			t.Errorf("%v (event %q): OutcomeUnknown = %v, want %v", tt.err.Kind, tt.err.EventID, got, tt.want)
		}
	}
}

func TestParseKeyPolicy(t *testing.T) {
	ev := PageEvent{ID: "id-1", Name: "home"}
	for in, want := range map[string]string{"": "home", "name": "home", "none": "", "id": "id-1"} {
		p, err := ParseKeyPolicy(in)
		if err != nil {
			t.Fatalf("ParseKeyPolicy(%q): %v", in, err)
		}
		if got := p.Key(ev); got != want {
			t.Errorf("policy %q key = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseKeyPolicy("random"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
