package debounce_test

import (
	"testing"

	"github.com/okian/falcongrasp/internal/domain/debounce"
	. "github.com/smartystreets/goconvey/convey"
)

var palette = []string{"red", "blue", "green"}

func frames(c *debounce.Counter, n int, present map[string]bool) []debounce.Confirmation {
	var all []debounce.Confirmation
	for i := 0; i < n; i++ {
		all = append(all, c.Observe(palette, present)...)
	}
	return all
}

func TestCounterConfirmation(t *testing.T) {
	Convey("Given a counter with threshold 10", t, func() {
		c := debounce.New(10)

		Convey("When red is present for 9 frames", func() {
			out := frames(c, 9, map[string]bool{"red": true})

			Convey("Then nothing is confirmed yet", func() {
				So(out, ShouldBeEmpty)
				So(c.Count("red"), ShouldEqual, 9)
			})
		})

		Convey("When red is present for 10 consecutive frames", func() {
			out := frames(c, 10, map[string]bool{"red": true})

			Convey("Then exactly one confirmation with one distinct color is produced", func() {
				So(out, ShouldResemble, []debounce.Confirmation{{Color: "red", Distinct: 1}})
				So(c.Count("red"), ShouldEqual, 0)
			})
		})

		Convey("When red stays present for 25 frames", func() {
			out := frames(c, 25, map[string]bool{"red": true})

			Convey("Then at most one confirmation is produced per threshold window", func() {
				So(out, ShouldHaveLength, 2)
				So(out[1].Distinct, ShouldEqual, 1)
			})
		})

		Convey("When presence is interrupted by a short occlusion", func() {
			frames(c, 6, map[string]bool{"red": true})
			frames(c, 2, nil)
			out := frames(c, 6, map[string]bool{"red": true})

			Convey("Then the color is still confirmed after sustained presence", func() {
				So(out, ShouldHaveLength, 1)
			})
		})

		Convey("When two colors are confirmed", func() {
			frames(c, 10, map[string]bool{"red": true})
			out := frames(c, 10, map[string]bool{"blue": true})

			Convey("Then the distinct count reflects both", func() {
				So(out, ShouldResemble, []debounce.Confirmation{{Color: "blue", Distinct: 2}})
				So(c.Confirmed(), ShouldResemble, []string{"blue", "red"})
			})
		})
	})
}

func TestCounterFloor(t *testing.T) {
	Convey("Given a fresh counter", t, func() {
		c := debounce.New(10)

		Convey("When absence is delivered repeatedly", func() {
			out := frames(c, 50, nil)

			Convey("Then no counter goes below zero and nothing is published", func() {
				So(out, ShouldBeEmpty)
				for _, name := range palette {
					So(c.Count(name), ShouldEqual, 0)
				}
			})
		})
	})
}

func TestCounterBound(t *testing.T) {
	Convey("Given every color present on every frame", t, func() {
		c := debounce.New(3)
		all := map[string]bool{"red": true, "blue": true, "green": true}

		Convey("When many windows elapse", func() {
			out := frames(c, 30, all)

			Convey("Then the distinct count never exceeds the palette size", func() {
				So(out, ShouldNotBeEmpty)
				for _, conf := range out {
					So(conf.Distinct, ShouldBeLessThanOrEqualTo, len(palette))
				}
			})
		})
	})
}

func TestCounterReset(t *testing.T) {
	Convey("Given a counter with a confirmed color", t, func() {
		c := debounce.New(2)
		frames(c, 2, map[string]bool{"green": true})
		frames(c, 1, map[string]bool{"red": true})

		Convey("When it is reset", func() {
			c.Reset()

			Convey("Then counters and the confirmed set are empty", func() {
				So(c.Confirmed(), ShouldBeEmpty)
				So(c.Count("red"), ShouldEqual, 0)
				out := frames(c, 2, map[string]bool{"red": true})
				So(out, ShouldResemble, []debounce.Confirmation{{Color: "red", Distinct: 1}})
			})
		})

		Convey("Then a non-positive threshold falls back to the default", func() {
			So(debounce.New(0).Threshold(), ShouldEqual, debounce.DefaultThreshold)
		})
	})
}
