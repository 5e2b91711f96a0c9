package schedule

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
)

const (
	DefaultBaseURL      = "https://www.vendeeglobe.org/sites/default/files/ranking/"
	DefaultURLTemplate  = "vendeeglobe_leaderboard_{date}_{slot}.xlsx"
	DefaultFileTemplate = "data_{date}_{slot}.xlsx"
	DefaultCacheDir     = ".data"
)

// Locator maps a snapshot identifier to its remote URL and its cache path.
type Locator struct {
	BaseURL      string
	URLTemplate  string
	CacheDir     string
	FileTemplate string
}

// DefaultLocator returns the published source and the ./.data cache.
func DefaultLocator() Locator {
	return Locator{
		BaseURL:      DefaultBaseURL,
		URLTemplate:  DefaultURLTemplate,
		CacheDir:     DefaultCacheDir,
		FileTemplate: DefaultFileTemplate,
	}
}

// URL returns the download address of id.
func (l Locator) URL(id model.SnapshotID) string {
	tmpl := l.URLTemplate
	if tmpl == "" {
		tmpl = DefaultURLTemplate
	}
	return l.BaseURL + expand(tmpl, id)
}

// CachePath returns where id is stored locally.
func (l Locator) CachePath(id model.SnapshotID) string {
	tmpl := l.FileTemplate
	if tmpl == "" {
		tmpl = DefaultFileTemplate
	}
	return filepath.Join(l.CacheDir, expand(tmpl, id))
}

// Job builds the FetchJob for id.
func (l Locator) Job(id model.SnapshotID) model.FetchJob {
	return model.FetchJob{ID: id, URL: l.URL(id), CachePath: l.CachePath(id)}
}

func expand(tmpl string, id model.SnapshotID) string {
	return strings.NewReplacer("{date}", id.Date, "{slot}", id.Slot, "{heure}", id.Slot).Replace(tmpl)
}

// ExistsFunc reports whether a cache path is already populated.
type ExistsFunc func(path string) bool

// Planner turns the calendar into fetch jobs.
type Planner struct {
	resolver *Resolver
	locator  Locator
	exists   ExistsFunc
}

// NewPlanner builds a planner; exists is consulted by ResolveMissing.
func NewPlanner(resolver *Resolver, locator Locator, exists ExistsFunc) *Planner {
	return &Planner{resolver: resolver, locator: locator, exists: exists}
}

// Locator returns the planner's locator.
func (p *Planner) Locator() Locator {
	return p.locator
}

// Plan lists the exception snapshot first, then every date crossed with
// every slot, in order.
func (p *Planner) Plan(dates, slots []string, exception model.SnapshotID) []model.FetchJob {
	plan := make([]model.FetchJob, 0, len(dates)*len(slots)+1)
	if !exception.IsZero() {
		plan = append(plan, p.locator.Job(exception))
	}
	for _, d := range dates {
		for _, s := range slots {
			plan = append(plan, p.locator.Job(model.SnapshotID{Date: d, Slot: s}))
		}
	}
	return plan
}

// PlanAt plans everything the calendar knows about up to now.
func (p *Planner) PlanAt(now time.Time) []model.FetchJob {
	return p.Plan(p.resolver.DatesSinceStart(now), p.resolver.Slots(), p.resolver.FirstDay())
}

// Due keeps the jobs whose snapshot should already be published at now.
// Later slots of the current day are left for a later run.
func (p *Planner) Due(plan []model.FetchJob, now time.Time) []model.FetchJob {
	out := make([]model.FetchJob, 0, len(plan))
	for _, job := range plan {
		at, err := p.resolver.PublishedAt(job.ID)
		if err != nil || at.After(now) {
			continue
		}
		out = append(out, job)
	}
	return out
}

// ResolveMissing keeps the jobs whose cache file does not exist yet. It is a
// pure function of plan and the exists predicate.
func (p *Planner) ResolveMissing(plan []model.FetchJob) []model.FetchJob {
	out := make([]model.FetchJob, 0, len(plan))
	for _, job := range plan {
		if p.exists != nil && p.exists(job.CachePath) {
			continue
		}
		out = append(out, job)
	}
	return out
}
