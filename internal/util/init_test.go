package util

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const testConfig = `
[server]
address = ":8080"

[gateway]
publish_timeout = "5s"
allowed_topics = ["clicks", "views.*"]

[broker]
type = "kafka"
brokers = ["localhost:9092"]

[broker.extra]
batch_size = 50
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitConfig_File(t *testing.T) {
	ko, err := InitConfig(discard(), writeConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ko.String("server.address"); got != ":8080" {
		t.Errorf("server.address = %q", got)
	}
	if got := ko.Strings("gateway.allowed_topics"); len(got) != 2 || got[1] != "views.*" {
		t.Errorf("allowed_topics = %v", got)
	}
	if got := ko.Int("broker.extra.batch_size"); got != 50 {
		t.Errorf("batch_size = %d", got)
	}
}

func TestInitConfig_EnvOverrides(t *testing.T) {
	t.Setenv("EVENTGATE_SERVER__ADDRESS", ":9090")
	t.Setenv("EVENTGATE_BROKER__BROKERS", "a:9092 b:9092")

	ko, err := InitConfig(discard(), writeConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ko.String("server.address"); got != ":9090" {
		t.Errorf("server.address = %q", got)
	}
	if got := ko.Strings("broker.brokers"); len(got) != 2 || got[0] != "a:9092" {
		t.Errorf("brokers = %v", got)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name, value string
		key         string
		want        any
	}{
		{"EVENTGATE_SERVER__ADDRESS", ":9090", "server.address", ":9090"},
		{"EVENTGATE_BROKER__EXTRA__BATCH_SIZE", "50", "broker.extra.batch_size", "50"},
		{"EVENTGATE_GATEWAY__ALLOWED_TOPICS", " clicks  views.* ", "gateway.allowed_topics", []string{"clicks", "views.*"}},
		{"EVENTGATE_BROKER__TYPE", " redis ", "broker.type", "redis"},
	}
	for _, tt := range tests {
		key, got := envKey(tt.name, tt.value)
		if key != tt.key || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("envKey(%q, %q) = %q, %#v", tt.name, tt.value, key, got)
		}
	}
}

func TestInitConfig_MissingFile(t *testing.T) {
	if _, err := InitConfig(discard(), filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestInitConfig_NoFile(t *testing.T) {
	t.Setenv("EVENTGATE_BROKER__TYPE", "redis")
	ko, err := InitConfig(discard(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ko.String("broker.type"); got != "redis" {
		t.Errorf("broker.type = %q", got)
	}
}

func TestInitLogger(t *testing.T) {
	t.Setenv("DEBUG", "1")
	if l := InitLogger(); !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("DEBUG should enable debug level")
	}
}
