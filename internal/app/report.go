package app

import (
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
)

// FetchSummary counts fetch outcomes by status.
type FetchSummary struct {
	Planned  int `json:"planned"`
	Missing  int `json:"missing"`
	Fetched  int `json:"fetched"`
	Cached   int `json:"cached"`
	InFlight int `json:"in_flight"`
	Failed   int `json:"failed"`
}

func (f *FetchSummary) add(r model.FetchResult) {
	switch r.Status {
	case model.FetchFetched:
		f.Fetched++
	case model.FetchCached:
		f.Cached++
	case model.FetchInFlight:
		f.InFlight++
	case model.FetchFailed:
		f.Failed++
	}
}

// RunReport describes one pipeline run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Now        time.Time `json:"now"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Fetch FetchSummary `json:"fetch"`

	Parsed       int `json:"parsed"`
	ParseFailed  int `json:"parse_failed"`
	RowsRejected int `json:"rows_rejected"`

	// Reloaded counts snapshots read again from the cache because the
	// store's retention had dropped them.
	Reloaded      int `json:"reloaded"`
	ArchiveFailed int `json:"archive_failed"`

	Snapshots    int              `json:"snapshots"`
	Records      int              `json:"records"`
	Boats        int              `json:"boats"`
	Trajectories int              `json:"trajectories"`
	Latest       model.SnapshotID `json:"latest"`

	Outputs      []string `json:"outputs"`
	ExportFailed int      `json:"export_failed"`
}

// Duration returns how long the run took.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status is "ok", "partial" when something was skipped, or "error" when
// nothing was exported.
func (r RunReport) Status() string {
	switch {
	case len(r.Outputs) == 0:
		return "error"
	case r.Fetch.Failed > 0 || r.ParseFailed > 0 || r.ExportFailed > 0 || r.ArchiveFailed > 0:
		return "partial"
	default:
		return "ok"
	}
}

// SnapshotReport describes a single-snapshot export.
type SnapshotReport struct {
	ID       model.SnapshotID  `json:"id"`
	Status   model.FetchStatus `json:"status"`
	Records  int               `json:"records"`
	Rejected int               `json:"rejected"`
	Retired  []string          `json:"retired"`
	Outputs  []string          `json:"outputs"`

	// ArchiveFailed is set when an archive sink refused the snapshot; the
	// export still went ahead.
	ArchiveFailed bool `json:"archive_failed"`
}

// SnapshotSummary is one loaded snapshot as listed by the API.
type SnapshotSummary struct {
	ID       model.SnapshotID `json:"id"`
	Records  int              `json:"records"`
	Rejected int              `json:"rejected"`
	Retired  int              `json:"retired"`
}

// Stats is the service state reported by the API.
type Stats struct {
	Snapshots    int        `json:"snapshots"`
	Boats        int        `json:"boats"`
	Trajectories int        `json:"trajectories"`
	Workers      int        `json:"workers"`
	Running      bool       `json:"running"`
	Runs         int64      `json:"runs"`
	Archives     int        `json:"archives"`
	LastRun      *RunReport `json:"last_run,omitempty"`
}
