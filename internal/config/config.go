// Package config maps the loaded koanf tree onto typed settings.
package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/miladsoleymani/eventgate/broker"
	"github.com/miladsoleymani/eventgate/core"
)

type (
	Config struct {
		Server  Server
		Gateway Gateway
		Broker  Broker
		Ledger  Ledger
	}

	Server struct {
		Address           string
		ReadHeaderTimeout time.Duration
		ShutdownTimeout   time.Duration
		APIKeys           []string
	}

	Gateway struct {
		PublishTimeout time.Duration
		KeyPolicy      core.KeyPolicy
		AllowedTopics  []string
	}

	Broker struct {
		Type   string
		Config broker.Config
	}

	Ledger struct {
		Enabled   bool
		Type      string
		Path      string
		DSN       string
		QueueSize int
		BatchSize int
		BatchWait time.Duration
	}
)

const (
	defaultAddress           = ":8080"
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 30 * time.Second
	defaultLedgerPath        = "eventgate-ledger.db"
	defaultLedgerQueue       = 10_000
	defaultLedgerBatch       = 500
	defaultLedgerWait        = 50 * time.Millisecond
)

// Load reads settings from ko, filling in defaults.
func Load(ko *koanf.Koanf) (Config, error) {
	var cfg Config

	cfg.Server = Server{
		Address:           stringOr(ko, "server.address", defaultAddress),
		ReadHeaderTimeout: durationOr(ko, "server.read_header_timeout", defaultReadHeaderTimeout),
		ShutdownTimeout:   durationOr(ko, "server.shutdown_timeout", defaultShutdownTimeout),
		APIKeys:           ko.Strings("server.api_keys"),
	}

	keys, err := core.ParseKeyPolicy(ko.String("gateway.key_policy"))
	if err != nil {
		return Config{}, err
	}
	cfg.Gateway = Gateway{
		PublishTimeout: durationOr(ko, "gateway.publish_timeout", core.DefaultTimeout),
		KeyPolicy:      keys,
		AllowedTopics:  ko.Strings("gateway.allowed_topics"),
	}

	cfg.Broker = Broker{
		Type: ko.String("broker.type"),
		Config: broker.Config{
			Brokers:  ko.Strings("broker.brokers"),
			ClientID: stringOr(ko, "broker.client_id", "eventgate"),
			Extra:    ko.Cut("broker.extra").Raw(),
		},
	}
	if cfg.Broker.Type == "" {
		return Config{}, fmt.Errorf("config: broker.type is required")
	}

	cfg.Ledger = Ledger{
		Enabled:   ko.Bool("ledger.enabled"),
		Type:      stringOr(ko, "ledger.type", "bolt"),
		Path:      stringOr(ko, "ledger.path", defaultLedgerPath),
		DSN:       ko.String("ledger.dsn"),
		QueueSize: intOr(ko, "ledger.queue_size", defaultLedgerQueue),
		BatchSize: intOr(ko, "ledger.batch_size", defaultLedgerBatch),
		BatchWait: durationOr(ko, "ledger.batch_wait", defaultLedgerWait),
	}
	if cfg.Ledger.Enabled {
		switch cfg.Ledger.Type {
		case "bolt":
		case "postgres":
			if cfg.Ledger.DSN == "" {
				return Config{}, fmt.Errorf("config: ledger.dsn is required for the postgres ledger")
			}
		default:
			return Config{}, fmt.Errorf("config: unknown ledger.type %q", cfg.Ledger.Type)
		}
	}

	return cfg, nil
}

func stringOr(ko *koanf.Koanf, key, def string) string {
	if v := ko.String(key); v != "" {
		return v
	}
	return def
}

func intOr(ko *koanf.Koanf, key string, def int) int {
	if v := ko.Int(key); v > 0 {
		return v
	}
	return def
}

func durationOr(ko *koanf.Koanf, key string, def time.Duration) time.Duration {
	if v := ko.Duration(key); v > 0 {
		return v
	}
	return def
}
