package app_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/sailtrack/internal/adapters/export"
	"github.com/okian/sailtrack/internal/adapters/repository"
	"github.com/okian/sailtrack/internal/adapters/source"
	"github.com/okian/sailtrack/internal/app"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/internal/domain/schedule"
	"github.com/okian/sailtrack/internal/testsnapshots"
	"github.com/okian/sailtrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var (
	now       = time.Date(2024, 11, 12, 15, 30, 0, 0, time.UTC)
	departure = time.Date(2024, 11, 10, 13, 4, 0, 0, time.UTC)
	published = []model.SnapshotID{
		{Date: "20241111", Slot: "020000"},
		{Date: "20241112", Slot: "020000"},
		{Date: "20241112", Slot: "140000"},
	}
)

func calendar() schedule.Calendar {
	return schedule.Calendar{
		RaceStart:      time.Date(2024, 11, 11, 0, 0, 0, 0, time.UTC),
		Slots:          []string{"020000", "140000"},
		PublicationLag: time.Hour,
		Location:       time.UTC,
	}
}

type fixture struct {
	dir     string
	out     string
	locator schedule.Locator
	fleet   []testsnapshots.Boat
}

// newFixture publishes workbooks for ids into a directory that stands in for
// the remote host.
func newFixture(t *testing.T, ids []model.SnapshotID) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:   dir,
		out:   filepath.Join(dir, "out"),
		fleet: testsnapshots.NewFleet(3, 11),
		locator: schedule.Locator{
			BaseURL:  filepath.Join(dir, "remote") + string(filepath.Separator),
			CacheDir: filepath.Join(dir, "cache"),
		},
	}
	gen := testsnapshots.NewGenerator(f.fleet, departure)
	if _, err := gen.Publish(filepath.Join(dir, "remote"), f.locator, ids); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(f.out, 0o755); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) service(t *testing.T, fetcher source.Fetcher, opts ...app.Option) *app.Service {
	t.Helper()
	r, err := schedule.NewResolver(calendar())
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]app.Option{app.WithOutputDir(f.out), app.WithWorkerCount(2)}, opts...)
	return app.New(r, f.locator, fetcher, opts...)
}

func TestServiceRun(t *testing.T) {
	Convey("Given a host that published three of four due snapshots", t, func() {
		f := newFixture(t, published)
		svc := f.service(t, source.NewClient())
		ctx := context.Background()

		Convey("When the pipeline runs", func() {
			report, err := svc.Run(ctx, now)

			Convey("Then the missing snapshot is skipped and the rest are parsed", func() {
				So(err, ShouldBeNil)
				So(report.RunID, ShouldNotBeEmpty)
				So(report.Fetch.Planned, ShouldEqual, 4)
				So(report.Fetch.Fetched, ShouldEqual, 3)
				So(report.Fetch.Failed, ShouldEqual, 1)
				So(report.Parsed, ShouldEqual, 3)
				So(report.Status(), ShouldEqual, "partial")
			})

			Convey("And one trajectory per boat spans every snapshot", func() {
				So(report.Boats, ShouldEqual, 3)
				So(report.Trajectories, ShouldEqual, 3)
				So(report.Records, ShouldEqual, 9)
				So(report.Latest, ShouldResemble, published[2])
			})

			Convey("And both layers are written to the dated GeoPackage", func() {
				path := filepath.Join(f.out, "data_20241112.gpkg")
				So(report.Outputs, ShouldResemble, []string{path})
				_, statErr := os.Stat(path)
				So(statErr, ShouldBeNil)
			})

			Convey("And a second run only retries what is still missing", func() {
				again, err := svc.Run(ctx, now)
				So(err, ShouldBeNil)
				So(again.Fetch.Missing, ShouldEqual, 1)
				So(again.Parsed, ShouldEqual, 0)
				So(again.Snapshots, ShouldEqual, 3)
				So(again.RunID, ShouldNotEqual, report.RunID)
			})

			Convey("And the stats and listings reflect the run", func() {
				st := svc.Stats(ctx)
				So(st.Snapshots, ShouldEqual, 3)
				So(st.Trajectories, ShouldEqual, 3)
				So(st.Runs, ShouldEqual, 1)
				So(st.LastRun, ShouldNotBeNil)
				So(len(svc.Snapshots(ctx)), ShouldEqual, 3)
			})

			Convey("And positions can be served as GeoJSON", func() {
				data, err := svc.PositionsGeoJSON(ctx, model.SnapshotID{})
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"FeatureCollection"`)

				_, err = svc.PositionsGeoJSON(ctx, model.SnapshotID{Date: "20241111", Slot: "140000"})
				So(errors.Is(err, app.ErrUnknownSnapshot), ShouldBeTrue)

				tracks, err := svc.TrajectoriesGeoJSON(ctx)
				So(err, ShouldBeNil)
				So(string(tracks), ShouldContainSubstring, `"LineString"`)
			})
		})

		Convey("When GeoJSON output is requested too", func() {
			svc := f.service(t, source.NewClient(), app.WithFormats(export.FormatGeoPackage, export.FormatGeoJSON))
			report, err := svc.Run(ctx, now)

			Convey("Then each layer gets its own GeoJSON file", func() {
				So(err, ShouldBeNil)
				So(report.Outputs, ShouldContain, filepath.Join(f.out, "data_20241112_pointages.geojson"))
				So(report.Outputs, ShouldContain, filepath.Join(f.out, "data_20241112_trajectoire.geojson"))
				So(len(report.Outputs), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a host that published nothing", t, func() {
		f := newFixture(t, nil)
		svc := f.service(t, source.NewClient())

		Convey("When the pipeline runs", func() {
			report, err := svc.Run(context.Background(), now)

			Convey("Then it fails because nothing could be exported", func() {
				So(errors.Is(err, app.ErrNoSnapshots), ShouldBeTrue)
				So(report.Fetch.Failed, ShouldEqual, 4)
				So(report.Status(), ShouldEqual, "error")
			})
		})
	})
}

func TestServiceRunWithRetention(t *testing.T) {
	Convey("Given a store that retains only the latest snapshot", t, func() {
		f := newFixture(t, published)
		archive := &recorder{}
		svc := f.service(t, source.NewClient(),
			app.WithStore(repository.NewMemoryStore(repository.WithRetention(1))),
			app.WithArchive(archive),
		)
		ctx := context.Background()

		Convey("When the pipeline runs", func() {
			report, err := svc.Run(ctx, now)
			So(err, ShouldBeNil)

			Convey("Then trajectories still hold a point per published snapshot", func() {
				So(report.Parsed, ShouldEqual, 3)
				So(report.Snapshots, ShouldEqual, 3)
				So(report.Records, ShouldEqual, 9)
				trajs := svc.Trajectories(ctx)
				So(len(trajs), ShouldEqual, 3)
				for _, tr := range trajs {
					So(tr.Points, ShouldEqual, 3)
				}
			})

			Convey("And the API only serves what the store kept", func() {
				So(svc.Stats(ctx).Snapshots, ShouldEqual, 1)
				So(svc.Snapshots(ctx)[0].ID, ShouldResemble, published[2])
			})

			Convey("And a later run reloads dropped snapshots without archiving them again", func() {
				again, err := svc.Run(ctx, now)
				So(err, ShouldBeNil)
				So(again.Parsed, ShouldEqual, 0)
				So(again.Reloaded, ShouldEqual, 2)
				So(again.Records, ShouldEqual, 9)
				So(archive.tables, ShouldResemble, published)
				So(svc.Stats(ctx).Snapshots, ShouldEqual, 1)
			})
		})
	})
}

func TestServiceSync(t *testing.T) {
	Convey("Given a host with every due snapshot", t, func() {
		f := newFixture(t, testsnapshots.IDs([]string{"20241111", "20241112"}, []string{"020000", "140000"}))
		svc := f.service(t, source.NewClient())

		Convey("When syncing twice", func() {
			first, err := svc.Sync(context.Background(), now)
			So(err, ShouldBeNil)
			second, err := svc.Sync(context.Background(), now)
			So(err, ShouldBeNil)

			Convey("Then the second pass has nothing left to fetch", func() {
				So(first.Fetched, ShouldEqual, 4)
				So(second.Missing, ShouldEqual, 0)
				So(second.Fetched, ShouldEqual, 0)
				So(svc.Stats(context.Background()).Snapshots, ShouldEqual, 0)
			})
		})
	})
}

func TestServiceSnapshot(t *testing.T) {
	Convey("Given a published snapshot", t, func() {
		f := newFixture(t, published)
		svc := f.service(t, source.NewClient())
		ctx := context.Background()

		Convey("When it is exported on its own", func() {
			report, err := svc.Snapshot(ctx, published[2])

			Convey("Then its positions land in the classement file", func() {
				So(err, ShouldBeNil)
				So(report.Status, ShouldEqual, model.FetchFetched)
				So(report.Records, ShouldEqual, 3)
				So(report.Outputs, ShouldResemble, []string{filepath.Join(f.out, "classement_20241112_140000.gpkg")})
			})
		})

		Convey("When the latest snapshot is requested at 15:30", func() {
			report, err := svc.Latest(ctx, now)

			Convey("Then the 14:00 slot is exported", func() {
				So(err, ShouldBeNil)
				So(report.ID, ShouldResemble, published[2])
			})
		})

		Convey("When the snapshot was never published", func() {
			_, err := svc.Snapshot(ctx, model.SnapshotID{Date: "20241111", Slot: "140000"})

			Convey("Then the fetch failure is returned", func() {
				So(errors.Is(err, app.ErrFetch), ShouldBeTrue)
				So(errors.Is(err, source.ErrTransport), ShouldBeTrue)
			})
		})

		Convey("When the identifier is malformed", func() {
			_, err := svc.Snapshot(ctx, model.SnapshotID{Date: "2024111", Slot: "140000"})
			So(errors.Is(err, model.ErrInvalidSnapshotID), ShouldBeTrue)
		})
	})
}

// gate blocks every fetch until released.
type gate struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	inner   *source.Client
}

func (g *gate) Fetch(ctx context.Context, url string) ([]byte, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.inner.Fetch(ctx, url)
}

func TestServiceTryRun(t *testing.T) {
	Convey("Given a run blocked on its first download", t, func() {
		f := newFixture(t, published)
		g := &gate{entered: make(chan struct{}), release: make(chan struct{}), inner: source.NewClient()}
		svc := f.service(t, g)

		done := make(chan error, 1)
		go func() {
			_, err := svc.Run(context.Background(), now)
			done <- err
		}()
		<-g.entered

		Convey("When another run is attempted", func() {
			_, err := svc.TryRun(context.Background(), now)
			running := svc.Running()
			close(g.release)

			Convey("Then it is refused while the first completes", func() {
				So(errors.Is(err, app.ErrRunInProgress), ShouldBeTrue)
				So(running, ShouldBeTrue)
				So(<-done, ShouldBeNil)
			})
		})
	})
}

func TestServiceTrigger(t *testing.T) {
	Convey("Given a triggered run blocked on its first download", t, func() {
		f := newFixture(t, published)
		g := &gate{entered: make(chan struct{}), release: make(chan struct{}), inner: source.NewClient()}
		svc := f.service(t, g)

		ctx, cancel := context.WithCancel(context.Background())
		first := svc.Trigger(ctx, now)
		cancel()
		<-g.entered

		Convey("Then a second trigger is refused", func() {
			second := svc.Trigger(context.Background(), now)
			close(g.release)

			So(first, ShouldBeNil)
			So(errors.Is(second, app.ErrRunInProgress), ShouldBeTrue)

			Convey("And the first run completes despite the cancelled request", func() {
				deadline := time.Now().Add(10 * time.Second)
				for {
					if _, ok := svc.LastRun(); ok || time.Now().After(deadline) {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				report, ok := svc.LastRun()
				So(ok, ShouldBeTrue)
				So(report.Parsed, ShouldEqual, 3)
			})
		})
	})
}

type recorder struct {
	mu       sync.Mutex
	subjects []string
	tables   []model.SnapshotID
	closed   int
}

func (r *recorder) Publish(_ context.Context, suffix string, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, suffix)
	return nil
}

func (r *recorder) PublishJSON(ctx context.Context, suffix string, _ any) error {
	return r.Publish(ctx, suffix, nil)
}

func (r *recorder) Write(_ context.Context, table model.SnapshotTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = append(r.tables, table.ID)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func TestServiceSideEffects(t *testing.T) {
	Convey("Given an archive and a notifier", t, func() {
		f := newFixture(t, published)
		archive, notifier := &recorder{}, &recorder{}
		svc := f.service(t, source.NewClient(), app.WithArchive(archive), app.WithNotifier(notifier))

		Convey("When the pipeline runs", func() {
			_, err := svc.Run(context.Background(), now)
			So(err, ShouldBeNil)

			Convey("Then every parsed snapshot is archived once", func() {
				So(archive.tables, ShouldResemble, published)
			})

			Convey("And the run and positions are announced", func() {
				So(notifier.subjects, ShouldResemble, []string{"run", "positions"})
			})

			Convey("And closing the service closes both", func() {
				So(svc.Close(), ShouldBeNil)
				So(archive.closed, ShouldEqual, 1)
				So(notifier.closed, ShouldEqual, 1)
			})
		})
	})
}

type failingArchive struct{ recorder }

func (a *failingArchive) Write(context.Context, model.SnapshotTable) error {
	return errors.New("archive offline")
}

func TestServiceArchiveFailure(t *testing.T) {
	Convey("Given an archive that refuses every snapshot", t, func() {
		f := newFixture(t, published)
		svc := f.service(t, source.NewClient(), app.WithArchive(&failingArchive{}))
		ctx := context.Background()

		Convey("When the pipeline runs", func() {
			report, err := svc.Run(ctx, now)

			Convey("Then the refusals are counted and the export still happens", func() {
				So(err, ShouldBeNil)
				So(report.ArchiveFailed, ShouldEqual, 3)
				So(report.Outputs, ShouldNotBeEmpty)
				So(report.Status(), ShouldEqual, "partial")
			})
		})

		Convey("When a single snapshot is exported", func() {
			report, err := svc.Snapshot(ctx, published[0])

			Convey("Then the refusal is reported", func() {
				So(err, ShouldBeNil)
				So(report.ArchiveFailed, ShouldBeTrue)
				So(report.Outputs, ShouldNotBeEmpty)
			})
		})
	})
}

func TestServiceSchedule(t *testing.T) {
	Convey("Given a scheduled service without interval", t, func() {
		f := newFixture(t, published)
		svc := f.service(t, source.NewClient())

		Convey("When scheduled", func() {
			svc.Schedule(context.Background(), 0, func() time.Time { return now })

			Convey("Then exactly one run happened", func() {
				So(svc.Stats(context.Background()).Runs, ShouldEqual, 1)
				_, ok := svc.LastRun()
				So(ok, ShouldBeTrue)
			})
		})
	})
}
