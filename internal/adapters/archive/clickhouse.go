package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/okian/sailtrack/internal/domain/model"
)

const clickhouseSchema = `CREATE TABLE IF NOT EXISTS boat_positions (
	snapshot_date   LowCardinality(String),
	snapshot_slot   LowCardinality(String),
	boat_code       LowCardinality(String),
	rank            Int32,
	skipper         String,
	boat_name       String,
	reported_at     Nullable(DateTime64(3)),
	lat             Float64,
	lon             Float64,
	heading_30m     Nullable(Float64),
	speed_30m       Nullable(Float64),
	vmg_30m         Nullable(Float64),
	distance_30m    Nullable(Float64),
	heading_last    Nullable(Float64),
	speed_last      Nullable(Float64),
	vmg_last        Nullable(Float64),
	distance_last   Nullable(Float64),
	heading_24h     Nullable(Float64),
	speed_24h       Nullable(Float64),
	vmg_24h         Nullable(Float64),
	distance_24h    Nullable(Float64),
	dtf             Nullable(Float64),
	dtl             Nullable(Float64),
	inserted_at     DateTime64(3) DEFAULT now64(3)
)
ENGINE = ReplacingMergeTree(inserted_at)
PARTITION BY snapshot_date
ORDER BY (boat_code, snapshot_date, snapshot_slot)`

// ClickHouseSink archives rows into a ReplacingMergeTree table, so a
// snapshot written twice collapses to one copy on merge.
type ClickHouseSink struct {
	conn driver.Conn
}

// OpenClickHouse connects to addr and creates the table if needed.
func OpenClickHouse(ctx context.Context, addr, database, user, password string) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	if err := conn.Exec(ctx, clickhouseSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create clickhouse schema: %w", err)
	}
	return &ClickHouseSink{conn: conn}, nil
}

// Name implements Sink.
func (s *ClickHouseSink) Name() string { return "clickhouse" }

var clickhouseInsert = "INSERT INTO boat_positions (" + strings.Join(positionColumns, ", ") + ")"

// Write implements Sink.
func (s *ClickHouseSink) Write(ctx context.Context, table model.SnapshotTable) error {
	if len(table.Records) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, clickhouseInsert)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for i := range table.Records {
		if err := batch.Append(positionRow(&table.Records[i])...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append %s row %d: %w", table.ID, i, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch %s: %w", table.ID, err)
	}
	return nil
}

// Close implements Sink.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
