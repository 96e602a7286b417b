package broker_test

import (
	"strings"
	"testing"
	"time"

	"github.com/miladsoleymani/eventgate/broker"
	"github.com/miladsoleymani/eventgate/core"
	"github.com/miladsoleymani/eventgate/internal/mock"
)

func TestCreate(t *testing.T) {
	var got broker.Config
	broker.Register("test-mock", func(cfg broker.Config) (core.Producer, error) {
		got = cfg
		return mock.NewProducer(), nil
	})

	p, err := broker.Create("test-mock", broker.Config{Brokers: []string{"a:1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*mock.Producer); !ok {
		t.Errorf("got %T, want *mock.Producer", p)
	}
	if len(got.Brokers) != 1 || got.Brokers[0] != "a:1" {
		t.Errorf("factory saw %+v", got)
	}
}

func TestCreate_Unknown(t *testing.T) {
	_, err := broker.Create("does-not-exist", broker.Config{})
	if err == nil || !strings.Contains(err.Error(), "unknown broker") {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigExtra(t *testing.T) {
	cfg := broker.Config{Extra: map[string]any{
		"a": 3,
		"b": int64(4),
		"c": float64(5),
		"d": "x",
		"e": true,
		"f": "false",
		"g": "250ms",
		"h": int64(100),
		"i": "50",
		"j": " 7 ",
		"k": "250",
	}}

	for key, want := range map[string]int{"a": 3, "b": 4, "c": 5, "i": 50, "j": 7} {
		if n, ok := cfg.Int(key); !ok || n != want {
			t.Errorf("Int(%q) = %d, %v", key, n, ok)
		}
	}
	if _, ok := cfg.Int("d"); ok {
		t.Error("Int on a string should fail")
	}
	if s, ok := cfg.String("d"); !ok || s != "x" {
		t.Errorf("String = %q, %v", s, ok)
	}
	if b, ok := cfg.Bool("e"); !ok || !b {
		t.Errorf("Bool(e) = %v, %v", b, ok)
	}
	if b, ok := cfg.Bool("f"); !ok || b {
		t.Errorf("Bool(f) = %v, %v", b, ok)
	}
	if d, ok := cfg.Duration("g"); !ok || d != 250*time.Millisecond {
		t.Errorf("Duration(g) = %v, %v", d, ok)
	}
	if d, ok := cfg.Duration("h"); !ok || d != 100*time.Millisecond {
		t.Errorf("Duration(h) = %v, %v", d, ok)
	}
	if d, ok := cfg.Duration("k"); !ok || d != 250*time.Millisecond {
		t.Errorf("Duration(k) = %v, %v", d, ok)
	}
	if _, ok := cfg.Duration("d"); ok {
		t.Error("Duration on a non-numeric string should fail")
	}
	if _, ok := cfg.Duration("missing"); ok {
		t.Error("Duration on missing key should fail")
	}
}
