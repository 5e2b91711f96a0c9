// Package worker resolves planned snapshot fetches with a bounded pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/sailtrack/internal/adapters/cache"
	"github.com/okian/sailtrack/internal/adapters/mq/queue"
	"github.com/okian/sailtrack/internal/adapters/source"
	"github.com/okian/sailtrack/internal/domain/dedupe"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/pkg/logger"
	"github.com/okian/sailtrack/pkg/metrics"
)

const (
	defaultWorkerCount = 4
	enqueueRetryDelay  = 5 * time.Millisecond
)

// Fetcher downloads the bytes behind a snapshot URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Cache is the create-if-absent snapshot store.
type Cache interface {
	Exists(path string) bool
	Put(path string, data []byte) error
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Result pairs a resolved task with its outcome.
type Result struct {
	Seq    int
	Result model.FetchResult
}

// InMemoryWorker resolves tasks one at a time.
type InMemoryWorker struct {
	queue   Queue
	fetcher Fetcher
	cache   Cache
	guard   dedupe.Deduper
	name    string
	logger  logger.Logger
}

// NewInMemoryWorker creates a worker. A nil guard disables in-flight tracking.
func NewInMemoryWorker(q Queue, fetcher Fetcher, c Cache, guard dedupe.Deduper, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		fetcher: fetcher,
		cache:   c,
		guard:   guard,
		name:    "worker",
		logger:  logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run resolves tasks until the queue is drained or ctx is done, sending one
// Result per task it took.
func (w *InMemoryWorker) Run(ctx context.Context, out chan<- Result) {
	for t := range w.queue.Dequeue(ctx) {
		metrics.AddWorkerBusy(1)
		res := w.Resolve(ctx, t.Job)
		metrics.AddWorkerBusy(-1)
		out <- Result{Seq: t.Seq, Result: res}
	}
}

// Resolve fetches one job unless its cache file already exists or another
// caller is already fetching it.
func (w *InMemoryWorker) Resolve(ctx context.Context, job model.FetchJob) model.FetchResult {
	start := time.Now()
	res := model.FetchResult{Job: job}
	id := job.ID.String()

	if w.cache.Exists(job.CachePath) {
		res.Status = model.FetchCached
		metrics.RecordSnapshotCached()
		return res
	}
	if w.guard != nil {
		if w.guard.SeenAndRecord(ctx, id) {
			res.Status = model.FetchInFlight
			return res
		}
		defer w.guard.Unrecord(ctx, id)
	}

	data, err := w.fetcher.Fetch(ctx, job.URL)
	res.Duration = time.Since(start)
	if err != nil {
		metrics.RecordFetchError(source.Kind(err))
		w.logger.Warn(ctx, "snapshot fetch failed",
			logger.String("snapshot", id),
			logger.String("url", job.URL),
			logger.Error(err),
		)
		res.Status = model.FetchFailed
		res.Err = fmt.Errorf("fetch %s: %w", id, err)
		return res
	}

	switch err := w.cache.Put(job.CachePath, data); {
	case errors.Is(err, cache.ErrExists):
		res.Status = model.FetchCached
		metrics.RecordSnapshotCached()
	case err != nil:
		metrics.RecordFetchError("cache")
		w.logger.Error(ctx, "snapshot cache write failed",
			logger.String("snapshot", id),
			logger.String("path", job.CachePath),
			logger.Error(err),
		)
		res.Status = model.FetchFailed
		res.Err = fmt.Errorf("cache %s: %w", id, err)
	default:
		res.Status = model.FetchFetched
		res.Bytes = len(data)
		metrics.RecordSnapshotFetched(len(data), float64(res.Duration.Milliseconds()))
		w.logger.Debug(ctx, "snapshot fetched",
			logger.String("snapshot", id),
			logger.Int("bytes", len(data)),
			logger.Duration("took", res.Duration),
		)
	}
	return res
}

// Pool resolves a batch of jobs with a fixed number of workers.
type Pool struct {
	size     int
	capacity int
	fetcher  Fetcher
	cache    Cache
	guard    dedupe.Deduper
	logger   logger.Logger
}

// NewPool creates a pool of workerCount workers; values < 1 use a default.
func NewPool(workerCount int, fetcher Fetcher, c Cache, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		size:     workerCount,
		capacity: workerCount * 2,
		fetcher:  fetcher,
		cache:    c,
		guard:    dedupe.NewInMemoryDeduper(),
		logger:   logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	metrics.UpdateWorkerActiveCount(p.size)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Run resolves every job and returns only once each has a result, in job
// order. One job failing never affects another. If ctx ends first, jobs that
// were never taken by a worker fail with queue.ErrStopped.
func (p *Pool) Run(ctx context.Context, jobs []model.FetchJob) []model.FetchResult {
	results := make([]model.FetchResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}
	metrics.RecordSnapshotsPlanned(len(jobs))

	q := queue.NewInMemoryQueue(queue.WithCapacity(p.capacity))
	out := make(chan Result, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		w := NewInMemoryWorker(q, p.fetcher, p.cache, p.guard,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx, out)
		}()
	}

	p.feed(ctx, q, jobs)
	wg.Wait()
	close(out)

	done := make([]bool, len(jobs))
	for r := range out {
		results[r.Seq] = r.Result
		done[r.Seq] = true
	}
	for i, ok := range done {
		if ok {
			continue
		}
		results[i] = model.FetchResult{
			Job:    jobs[i],
			Status: model.FetchFailed,
			Err:    fmt.Errorf("%w: %s: %v", queue.ErrStopped, jobs[i].ID, context.Cause(ctx)),
		}
	}
	return results
}

// feed enqueues jobs in order, waiting for room when the queue is full, then
// closes the queue.
func (p *Pool) feed(ctx context.Context, q *queue.InMemoryQueue, jobs []model.FetchJob) {
	defer func() { _ = q.Close() }()

	for i, job := range jobs {
		for !q.Enqueue(ctx, queue.Task{Seq: i, Job: job}) {
			select {
			case <-ctx.Done():
				p.logger.Warn(ctx, "fetch run cancelled",
					logger.Int("enqueued", i),
					logger.Int("planned", len(jobs)),
				)
				return
			case <-time.After(enqueueRetryDelay):
			}
		}
	}
}
