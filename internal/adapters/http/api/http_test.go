package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/sailtrack/internal/adapters/http/api"
	"github.com/okian/sailtrack/internal/app"
	"github.com/okian/sailtrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const emptyCollection = `{"type":"FeatureCollection","features":[]}`

var latestID = model.SnapshotID{Date: "20241112", Slot: "140000"}

type mockDeps struct {
	busy      bool
	triggered []time.Time
	asked     []model.SnapshotID
}

func (m *mockDeps) Stats(context.Context) app.Stats {
	return app.Stats{Snapshots: 2, Workers: 4, LastRun: &app.RunReport{RunID: "r-1", Latest: latestID}}
}

func (m *mockDeps) Snapshots(context.Context) []app.SnapshotSummary {
	return []app.SnapshotSummary{{ID: latestID, Records: 38, Rejected: 1}}
}

func (m *mockDeps) PositionsGeoJSON(_ context.Context, id model.SnapshotID) ([]byte, error) {
	m.asked = append(m.asked, id)
	if !id.IsZero() && id != latestID {
		return nil, errors.Join(app.ErrUnknownSnapshot, errors.New(id.String()))
	}
	return []byte(emptyCollection), nil
}

func (m *mockDeps) TrajectoriesGeoJSON(context.Context) ([]byte, error) {
	return []byte(emptyCollection), nil
}

func (m *mockDeps) Trigger(_ context.Context, now time.Time) error {
	if m.busy {
		return app.ErrRunInProgress
	}
	m.triggered = append(m.triggered, now)
	return nil
}

var fixedNow = time.Date(2024, 11, 12, 15, 30, 0, 0, time.UTC)

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, func() time.Time { return fixedNow }).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStatsEndpoints(t *testing.T) {
	Convey("Given the API over a loaded service", t, func() {
		mux := newMux(&mockDeps{})

		Convey("When GET /stats is called", func() {
			rec := do(mux, http.MethodGet, "/stats")

			Convey("Then the service stats are returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["snapshots"], ShouldEqual, 2.0)
				So(body["last_run"].(map[string]any)["run_id"], ShouldEqual, "r-1")
			})
		})

		Convey("When GET /snapshots is called", func() {
			rec := do(mux, http.MethodGet, "/snapshots")

			Convey("Then each snapshot is listed with its counts", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body []app.SnapshotSummary
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(len(body), ShouldEqual, 1)
				So(body[0].ID, ShouldResemble, latestID)
				So(body[0].Records, ShouldEqual, 38)
			})
		})

		Convey("When /stats is called with POST", func() {
			So(do(mux, http.MethodPost, "/stats").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When GET /healthz is called", func() {
			rec := do(mux, http.MethodGet, "/healthz")

			Convey("Then Prometheus metrics are exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "sailtrack_")
			})
		})
	})
}

func TestGeoEndpoints(t *testing.T) {
	Convey("Given the API over a loaded service", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When the latest positions are requested", func() {
			rec := do(mux, http.MethodGet, "/positions")

			Convey("Then a FeatureCollection is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldEqual, "application/geo+json")
				So(rec.Body.String(), ShouldEqual, emptyCollection)
				So(deps.asked, ShouldResemble, []model.SnapshotID{{}})
			})
		})

		Convey("When a known snapshot is requested", func() {
			rec := do(mux, http.MethodGet, "/positions?snapshot=20241112_140000")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.asked, ShouldResemble, []model.SnapshotID{latestID})
		})

		Convey("When an unknown snapshot is requested", func() {
			rec := do(mux, http.MethodGet, "/positions?snapshot=20241111_020000")

			Convey("Then 404 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(rec.Body.String(), ShouldContainSubstring, `"not_found"`)
			})
		})

		Convey("When the snapshot parameter is malformed", func() {
			rec := do(mux, http.MethodGet, "/positions?snapshot=yesterday")

			Convey("Then 400 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "api.get_positions: bad request")
				So(deps.asked, ShouldBeEmpty)
			})
		})

		Convey("When trajectories are requested", func() {
			rec := do(mux, http.MethodGet, "/trajectories")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldEqual, emptyCollection)
		})
	})
}

func TestRefreshEndpoint(t *testing.T) {
	Convey("Given an idle service", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When POST /refresh is called", func() {
			rec := do(mux, http.MethodPost, "/refresh")

			Convey("Then a run is started at the clock's time", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(deps.triggered, ShouldResemble, []time.Time{fixedNow})
				So(strings.Contains(rec.Body.String(), `"accepted"`), ShouldBeTrue)
			})
		})

		Convey("When GET /refresh is called", func() {
			So(do(mux, http.MethodGet, "/refresh").Code, ShouldEqual, http.StatusNotFound)
			So(deps.triggered, ShouldBeEmpty)
		})
	})

	Convey("Given a service already running", t, func() {
		mux := newMux(&mockDeps{busy: true})

		Convey("When POST /refresh is called", func() {
			rec := do(mux, http.MethodPost, "/refresh")

			Convey("Then 409 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(rec.Body.String(), ShouldContainSubstring, "run_in_progress")
			})
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given an operation name and a kind", t, func() {
		cause := errors.New("boom")

		So(api.NewKind("op", api.ErrConflict).Error(), ShouldEqual, "op: conflict")
		So(api.WrapKind("op", api.ErrBadRequest, cause).Error(), ShouldEqual, "op: bad request: boom")
		So(errors.Is(api.WrapKind("op", api.ErrBadRequest, cause), cause), ShouldBeTrue)
		So(api.Wrap("op", nil), ShouldBeNil)
		So(errors.Is(api.Wrap("op", cause), cause), ShouldBeTrue)
	})
}
