package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS publish_outcomes (
	event_id    TEXT PRIMARY KEY,
	topic       TEXT NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	kind        TEXT,
	partition   INTEGER NOT NULL DEFAULT 0,
	"offset"    BIGINT NOT NULL DEFAULT 0,
	ack_id      TEXT,
	detail      TEXT,
	event_time  TIMESTAMPTZ,
	recorded_at TIMESTAMPTZ NOT NULL
)`

var outcomeColumns = []string{
	"event_id", "topic", "name", "status", "kind", "partition", `"offset"`, "ack_id", "detail", "event_time", "recorded_at",
}

// maxRowsPerInsert keeps one INSERT under the protocol's 65535 bind
// parameter limit.
var maxRowsPerInsert = 65535 / len(outcomeColumns)

// PostgresStore keeps entries in a publish_outcomes table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the table when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ledger: pgxpool: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: create table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// WriteBatch inserts entries with ON CONFLICT DO NOTHING, so the first
// recorded outcome of an event wins. Large batches go out as several
// statements; on error the rows of earlier statements stay written.
func (s *PostgresStore) WriteBatch(ctx context.Context, entries []Entry) (int64, error) {
	var written int64
	for _, chunk := range chunkEntries(entries, maxRowsPerInsert) {
		sql, args := insertSQL(chunk)
		ct, err := s.pool.Exec(ctx, sql, args...)
		if err != nil {
			return written, fmt.Errorf("ledger: insert batch: %w", err)
		}
		written += ct.RowsAffected()
	}
	return written, nil
}

func chunkEntries(entries []Entry, size int) [][]Entry {
	var out [][]Entry
	for len(entries) > size {
		out = append(out, entries[:size])
		entries = entries[size:]
	}
	if len(entries) > 0 {
		out = append(out, entries)
	}
	return out
}

// Ready checks the connection.
func (s *PostgresStore) Ready(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "select 1").Scan(&one)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func insertSQL(entries []Entry) (string, []any) {
	placeholders := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*len(outcomeColumns))

	argi := 1
	for _, e := range entries {
		ph := make([]string, len(outcomeColumns))
		for i := range ph {
			ph[i] = fmt.Sprintf("$%d", argi)
			argi++
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")

		var eventTime any
		if !e.EventTime.IsZero() {
			eventTime = e.EventTime
		}
		args = append(args,
			e.EventID, e.Topic, e.Name, string(e.Status),
			nullable(e.Kind), e.Partition, e.Offset, nullable(e.AckID), nullable(e.Detail),
			eventTime, e.RecordedAt,
		)
	}

	return "INSERT INTO publish_outcomes (" + strings.Join(outcomeColumns, ",") + ") VALUES " +
		strings.Join(placeholders, ",") +
		" ON CONFLICT DO NOTHING", args
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
