package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/sailtrack/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When claiming a snapshot for the first time", func() {
			seen := d.SeenAndRecord(ctx, "20241111_020000")

			Convey("Then it is not yet seen and is now held", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When claiming it twice", func() {
			d.SeenAndRecord(ctx, "20241111_020000")
			seen := d.SeenAndRecord(ctx, "20241111_020000")

			Convey("Then the second claim sees the first", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claim is released", func() {
			d.SeenAndRecord(ctx, "20241111_020000")
			d.Unrecord(ctx, "20241111_020000")
			d.Unrecord(ctx, "unknown")

			Convey("Then it can be claimed again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "20241111_020000"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))

		Convey("When more claims arrive than it can hold", func() {
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.SeenAndRecord(ctx, "c")

			Convey("Then the oldest claim is evicted", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})
	})

	Convey("Given concurrent claims on the same identifiers", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		var winners atomic.Int64
		var wg sync.WaitGroup

		for g := 0; g < 16; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("id-%d", i)) {
						winners.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each identifier is won exactly once", func() {
			So(winners.Load(), ShouldEqual, 50)
			So(d.Size(), ShouldEqual, 50)
		})
	})
}
