// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Domain values (calendar, locator) are derived from a loaded Config, never
//   read from the environment directly.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/internal/domain/schedule"
)

const raceStartLayout = "2006-01-02"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// Addr configures the HTTP listen address used by serve, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// DataDir holds cached workbooks.
	DataDir string `koanf:"data_dir" validate:"required"`

	// OutputDir receives exported layers.
	OutputDir string `koanf:"output_dir" validate:"required"`

	// SourceBaseURL prefixes every workbook name. A directory path replays
	// workbooks from disk.
	SourceBaseURL string `koanf:"source_base_url" validate:"required"`

	// Timezone names the zone the publication slots are expressed in.
	Timezone string `koanf:"timezone" validate:"required"`

	// RaceStart is the first regular publication day, YYYY-MM-DD.
	RaceStart string `koanf:"race_start" validate:"required,datetime=2006-01-02"`

	// FirstDayDate and FirstDaySlot name the irregular pre-start snapshot.
	FirstDayDate string `koanf:"first_day_date" validate:"omitempty,datetime=20060102"`
	FirstDaySlot string `koanf:"first_day_slot" validate:"omitempty,len=6,numeric"`

	// Slots are the daily HHMMSS publication times.
	Slots []string `koanf:"slots" validate:"required,min=1,dive,len=6,numeric"`

	// PublicationLagMinutes is the delay before a slot's file is available.
	PublicationLagMinutes int `koanf:"publication_lag_minutes" validate:"gte=0"`

	// QueueSize bounds the fetch queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// WorkerCount sets the number of concurrent fetches.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// FetchTimeoutMS bounds each download.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms" validate:"gt=0"`

	// RefreshIntervalMinutes schedules runs in serve mode; 0 disables them.
	RefreshIntervalMinutes int `koanf:"refresh_interval_minutes" validate:"gte=0"`

	// RetainSnapshots caps the snapshots kept in memory; 0 keeps all.
	RetainSnapshots int `koanf:"retain_snapshots" validate:"gte=0"`

	// ExportFormats lists the outputs written by a full run.
	ExportFormats []string `koanf:"export_formats" validate:"required,min=1,dive,oneof=gpkg geojson"`

	// StrictNames rejects snapshots whose name cells lack the skipper/boat separator.
	StrictNames bool `koanf:"strict_names"`

	// Optional sinks; empty disables them.
	PostgresDSN        string `koanf:"postgres_dsn"`
	ClickHouseAddr     string `koanf:"clickhouse_addr" validate:"omitempty,hostname_port"`
	ClickHouseDatabase string `koanf:"clickhouse_database"`
	ClickHouseUser     string `koanf:"clickhouse_user"`
	ClickHousePassword string `koanf:"clickhouse_password"`
	NATSURL            string `koanf:"nats_url"`
	NATSSubject        string `koanf:"nats_subject"`
}

// New creates a Config holding the defaults for the 2024 race.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		DataDir:                schedule.DefaultCacheDir,
		OutputDir:              ".",
		SourceBaseURL:          schedule.DefaultBaseURL,
		Timezone:               "Europe/Paris",
		RaceStart:              "2024-11-11",
		FirstDayDate:           "20241110",
		FirstDaySlot:           "130400",
		Slots:                  append([]string(nil), schedule.DefaultSlots...),
		PublicationLagMinutes:  60,
		QueueSize:              64,
		WorkerCount:            min(runtime.NumCPU(), 8),
		FetchTimeoutMS:         30_000,
		RefreshIntervalMinutes: 30,
		ExportFormats:          []string{"gpkg"},
		ClickHouseDatabase:     "default",
		NATSSubject:            "sailtrack",
	}
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidCalendar, c.Timezone, err)
	}
	return loc, nil
}

// Calendar builds the publication calendar.
func (c *Config) Calendar() (schedule.Calendar, error) {
	loc, err := c.Location()
	if err != nil {
		return schedule.Calendar{}, err
	}
	start, err := time.ParseInLocation(raceStartLayout, c.RaceStart, loc)
	if err != nil {
		return schedule.Calendar{}, fmt.Errorf("%w: race_start %q: %v", ErrInvalidCalendar, c.RaceStart, err)
	}
	cal := schedule.Calendar{
		RaceStart:      start,
		Slots:          append([]string(nil), c.Slots...),
		PublicationLag: time.Duration(c.PublicationLagMinutes) * time.Minute,
		Location:       loc,
	}
	if c.FirstDayDate != "" && c.FirstDaySlot != "" {
		cal.FirstDay = model.SnapshotID{Date: c.FirstDayDate, Slot: c.FirstDaySlot}
	}
	if err := cal.Validate(); err != nil {
		return schedule.Calendar{}, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}
	return cal, nil
}

// Locator builds the URL and cache-path mapping.
func (c *Config) Locator() schedule.Locator {
	l := schedule.DefaultLocator()
	l.BaseURL = c.SourceBaseURL
	l.CacheDir = c.DataDir
	return l
}

// FetchTimeout returns the per-download timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// RefreshInterval returns the serve-mode run interval; zero disables it.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}
