package color_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/falcongrasp/internal/domain/color"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultTable(t *testing.T) {
	Convey("Given the built-in calibration", t, func() {
		table := color.DefaultTable()

		Convey("Then it holds the ten stick colors in order", func() {
			So(table.Len(), ShouldEqual, 10)
			So(table.Names()[0], ShouldEqual, "pink")
			So(table.Require("red", "blue", "dark_green", "black"), ShouldBeNil)
		})

		Convey("Then Lab bounds are converted to the 8-bit encoding", func() {
			pink, ok := table.Get("pink")
			So(ok, ShouldBeTrue)
			So(pink.Lab.Lower, ShouldResemble, color.Triple{38, 153, 108})
			So(pink.AreaMin, ShouldEqual, 100)
			So(pink.AreaMax, ShouldEqual, 50000)
		})

		Convey("Then a missing color is reported", func() {
			err := table.Require("red", "orange")
			So(errors.Is(err, color.ErrMissingColor), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "orange")
		})
	})
}

func TestNewTable(t *testing.T) {
	Convey("Given hand-built ranges", t, func() {
		valid := color.Range{
			Name:    "red",
			HSV:     color.Bounds{Lower: color.Triple{0, 100, 100}, Upper: color.Triple{10, 255, 255}},
			Lab:     color.Bounds{Lower: color.Triple{0, 150, 0}, Upper: color.Triple{255, 255, 255}},
			AreaMin: 100,
			AreaMax: 5000,
		}

		Convey("When a range has inverted bounds", func() {
			bad := valid
			bad.HSV.Lower[0] = 20

			_, err := color.NewTable(bad)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, color.ErrInvalidRange), ShouldBeTrue)
			})
		})

		Convey("When a hue exceeds the OpenCV range", func() {
			bad := valid
			bad.HSV.Upper[0] = 200

			_, err := color.NewTable(bad)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, color.ErrInvalidRange), ShouldBeTrue)
			})
		})

		Convey("When the area window is inverted", func() {
			bad := valid
			bad.AreaMin = 9000

			_, err := color.NewTable(bad)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, color.ErrInvalidRange), ShouldBeTrue)
			})
		})

		Convey("When a name repeats", func() {
			_, err := color.NewTable(valid, valid)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, color.ErrDuplicateColor), ShouldBeTrue)
			})
		})
	})
}

func TestRangeFilters(t *testing.T) {
	Convey("Given a range with an aspect ceiling", t, func() {
		r := color.Range{AreaMin: 100, AreaMax: 1000, AspectRatioMax: 10}

		Convey("Then area bounds are inclusive", func() {
			So(r.AcceptsArea(100), ShouldBeTrue)
			So(r.AcceptsArea(1000), ShouldBeTrue)
			So(r.AcceptsArea(99.5), ShouldBeFalse)
			So(r.AcceptsArea(1000.5), ShouldBeFalse)
		})

		Convey("Then thin boxes are rejected", func() {
			So(r.AcceptsShape(20, 40), ShouldBeTrue)
			So(r.AcceptsShape(200, 10), ShouldBeFalse)
			So(r.AcceptsShape(0, 10), ShouldBeFalse)
		})

		Convey("Then a zero ceiling disables the shape check", func() {
			r.AspectRatioMax = 0
			So(r.AcceptsShape(500, 1), ShouldBeTrue)
		})
	})
}

func TestLoadTable(t *testing.T) {
	Convey("Given a YAML calibration file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "colors.yaml")
		So(os.WriteFile(path, []byte(`
colors:
  - name: red
    hsv: {lower: [170, 128, 109], upper: [179, 255, 255]}
    lab: {lower: [94, 185, 0], upper: [254, 255, 255]}
    area_min: 100
    area_max: 50000
  - name: green
    hsv: {lower: [43, 42, 50], upper: [64, 201, 255]}
    lab: {lower: [76, 0, 148], upper: [254, 107, 187]}
    area_min: 100
    area_max: 50000
    aspect_ratio_max: 10
`), 0o600), ShouldBeNil)

		Convey("When it is loaded", func() {
			table, err := color.LoadTable(path)

			Convey("Then the ranges are available in file order", func() {
				So(err, ShouldBeNil)
				So(table.Names(), ShouldResemble, []string{"red", "green"})
				green, _ := table.Get("green")
				So(green.AspectRatioMax, ShouldEqual, 10)
			})

			Convey("Then the table round-trips through Marshal", func() {
				data, err := table.Marshal()
				So(err, ShouldBeNil)
				again, err := color.ParseTable(data)
				So(err, ShouldBeNil)
				So(again.Ranges(), ShouldResemble, table.Ranges())
			})
		})

		Convey("When the file is missing", func() {
			_, err := color.LoadTable(filepath.Join(dir, "nope.yaml"))

			Convey("Then a load error is returned", func() {
				So(errors.Is(err, color.ErrLoadTable), ShouldBeTrue)
			})
		})

		Convey("When the file defines no colors", func() {
			_, err := color.ParseTable([]byte("colors: []\n"))

			Convey("Then a load error is returned", func() {
				So(errors.Is(err, color.ErrLoadTable), ShouldBeTrue)
			})
		})
	})
}
