package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/sailtrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	pubErr   error
	drained  bool
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	if c.pubErr != nil {
		return c.pubErr
	}
	c.subjects = append(c.subjects, subj)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) FlushTimeout(time.Duration) error { return nil }
func (c *fakeConn) Drain() error                     { c.drained = true; return nil }

func TestNotifier(t *testing.T) {
	_ = logger.Init()

	Convey("Given a notifier on the default subject", t, func() {
		conn := &fakeConn{}
		n := newNotifier(conn, "", logger.Get())
		ctx := context.Background()

		Convey("When a run summary is published", func() {
			err := n.PublishJSON(ctx, SubjectRun, map[string]int{"parsed": 12})

			Convey("Then it goes out as JSON under the run subject", func() {
				So(err, ShouldBeNil)
				So(conn.subjects, ShouldResemble, []string{"sailtrack.run"})
				var got map[string]int
				So(json.Unmarshal(conn.payloads[0], &got), ShouldBeNil)
				So(got["parsed"], ShouldEqual, 12)
			})
		})

		Convey("When the connection refuses the message", func() {
			conn.pubErr = errors.New("connection closed")
			err := n.Publish(ctx, SubjectPositions, []byte("{}"))

			Convey("Then a notify error is returned", func() {
				So(errors.Is(err, ErrNotify), ShouldBeTrue)
			})
		})

		Convey("When the value cannot be encoded", func() {
			err := n.PublishJSON(ctx, SubjectRun, func() {})
			So(errors.Is(err, ErrNotify), ShouldBeTrue)
			So(conn.subjects, ShouldBeEmpty)
		})

		Convey("When the context is already done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(n.Publish(cctx, SubjectRun, nil), ErrNotify), ShouldBeTrue)
		})

		Convey("When it is closed", func() {
			So(n.Close(), ShouldBeNil)
			So(conn.drained, ShouldBeTrue)
		})
	})

	Convey("Given a custom subject", t, func() {
		n := newNotifier(&fakeConn{}, "race.vg2024", logger.Get())
		So(n.Subject(SubjectPositions), ShouldEqual, "race.vg2024.positions")
	})
}
