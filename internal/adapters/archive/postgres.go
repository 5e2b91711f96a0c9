package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/sailtrack/internal/domain/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS boat_positions (
	snapshot_date   TEXT NOT NULL,
	snapshot_slot   TEXT NOT NULL,
	boat_code       TEXT NOT NULL,
	rank            INTEGER NOT NULL,
	skipper         TEXT NOT NULL,
	boat_name       TEXT NOT NULL,
	reported_at     TIMESTAMPTZ,
	lat             DOUBLE PRECISION NOT NULL,
	lon             DOUBLE PRECISION NOT NULL,
	heading_30m     DOUBLE PRECISION,
	speed_30m       DOUBLE PRECISION,
	vmg_30m         DOUBLE PRECISION,
	distance_30m    DOUBLE PRECISION,
	heading_last    DOUBLE PRECISION,
	speed_last      DOUBLE PRECISION,
	vmg_last        DOUBLE PRECISION,
	distance_last   DOUBLE PRECISION,
	heading_24h     DOUBLE PRECISION,
	speed_24h       DOUBLE PRECISION,
	vmg_24h         DOUBLE PRECISION,
	distance_24h    DOUBLE PRECISION,
	dtf             DOUBLE PRECISION,
	dtl             DOUBLE PRECISION,
	inserted_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (snapshot_date, snapshot_slot, boat_code)
);

CREATE INDEX IF NOT EXISTS idx_boat_positions_code ON boat_positions(boat_code, reported_at);
`

// batchSender is the part of pgxpool.Pool the sink uses.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresSink archives rows into the boat_positions table.
type PostgresSink struct {
	db    batchSender
	close func()
}

// OpenPostgres connects to dsn and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &PostgresSink{db: pool, close: pool.Close}, nil
}

// Name implements Sink.
func (s *PostgresSink) Name() string { return "postgres" }

var postgresInsert = "INSERT INTO boat_positions (" + strings.Join(positionColumns, ", ") + ") VALUES (" +
	placeholders(len(positionColumns)) + ") ON CONFLICT (snapshot_date, snapshot_slot, boat_code) DO NOTHING"

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(p, ", ")
}

// Write implements Sink. Rows already archived are left as they are.
func (s *PostgresSink) Write(ctx context.Context, table model.SnapshotTable) error {
	if len(table.Records) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i := range table.Records {
		b.Queue(postgresInsert, positionRow(&table.Records[i])...)
	}

	br := s.db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert %s row %d: %w", table.ID, i, err)
		}
	}
	return br.Close()
}

// Close implements Sink.
func (s *PostgresSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
