package vision_test

import (
	"image"
	imgcolor "image/color"
	"testing"

	"gocv.io/x/gocv"

	"github.com/okian/falcongrasp/internal/adapters/vision"
	"github.com/okian/falcongrasp/internal/domain/color"
	. "github.com/smartystreets/goconvey/convey"
)

func redTable(aspectMax float64) *color.Table {
	t, err := color.NewTable(color.Range{
		Name:           "red",
		HSV:            color.Bounds{Lower: color.Triple{0, 100, 100}, Upper: color.Triple{10, 255, 255}},
		Lab:            color.Bounds{Lower: color.Triple{0, 0, 0}, Upper: color.Triple{255, 255, 255}},
		AreaMin:        100,
		AreaMax:        50000,
		AspectRatioMax: aspectMax,
	})
	if err != nil {
		panic(err)
	}
	return t
}

func blackFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 200, gocv.MatTypeCV8UC3)
}

func TestClassifier(t *testing.T) {
	Convey("Given a classifier for red", t, func() {
		cls := vision.NewClassifier(redTable(0), vision.ClassifierOptions{KernelSize: 9, Smooth: true})
		defer cls.Close()

		Convey("A blank frame yields zero detections", func() {
			frame := blackFrame()
			defer frame.Close()
			res := cls.Classify(frame)
			So(res.Colors["red"].Count, ShouldEqual, 0)
			So(res.Present()["red"], ShouldBeFalse)
		})

		Convey("An empty Mat yields zero detections, not a panic", func() {
			empty := gocv.NewMat()
			defer empty.Close()
			res := cls.Classify(empty)
			So(res.Colors, ShouldContainKey, "red")
			So(res.Colors["red"].Count, ShouldEqual, 0)
		})

		Convey("A red stick is found with its bounding box", func() {
			frame := blackFrame()
			defer frame.Close()
			gocv.Rectangle(&frame, image.Rect(40, 80, 100, 100), imgcolor.RGBA{R: 255, A: 255}, -1)

			res := cls.Classify(frame)
			So(res.Colors["red"].Count, ShouldEqual, 1)
			So(res.Colors["red"].Boxes[0].Dx(), ShouldBeGreaterThan, 50)
			So(res.Colors["red"].MaxArea, ShouldBeGreaterThan, 100)

			evs := res.Events(2, cls.Colors())
			So(evs, ShouldHaveLength, 1)
			So(evs[0].CameraIndex, ShouldEqual, 2)
			So(evs[0].Confirmed, ShouldBeTrue)
		})

		Convey("Specks below the minimum area are ignored", func() {
			frame := blackFrame()
			defer frame.Close()
			gocv.Rectangle(&frame, image.Rect(10, 10, 15, 15), imgcolor.RGBA{R: 255, A: 255}, -1)
			So(cls.Classify(frame).Colors["red"].Count, ShouldEqual, 0)
		})

		Convey("A blue object is not red", func() {
			frame := blackFrame()
			defer frame.Close()
			gocv.Rectangle(&frame, image.Rect(40, 80, 100, 100), imgcolor.RGBA{B: 255, A: 255}, -1)
			So(cls.Classify(frame).Colors["red"].Count, ShouldEqual, 0)
		})
	})

	Convey("Given an aspect ceiling of 10", t, func() {
		cls := vision.NewClassifier(redTable(10), vision.ClassifierOptions{})
		defer cls.Close()

		Convey("A very thin line is rejected", func() {
			frame := blackFrame()
			defer frame.Close()
			gocv.Rectangle(&frame, image.Rect(10, 100, 190, 112), imgcolor.RGBA{R: 255, A: 255}, -1)
			So(cls.Classify(frame).Colors["red"].Count, ShouldEqual, 0)
		})
	})
}
