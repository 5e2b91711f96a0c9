package model

import "time"

// FetchJob is one planned download: where the snapshot lives and where its
// cached copy belongs.
type FetchJob struct {
	ID        SnapshotID
	URL       string
	CachePath string
}

// FetchStatus is the outcome of a FetchJob.
type FetchStatus string

const (
	FetchFetched  FetchStatus = "fetched"
	FetchCached   FetchStatus = "cached"
	FetchInFlight FetchStatus = "in_flight"
	FetchFailed   FetchStatus = "failed"
)

// FetchResult reports how a FetchJob resolved.
type FetchResult struct {
	Job      FetchJob
	Status   FetchStatus
	Err      error
	Bytes    int
	Duration time.Duration
}
