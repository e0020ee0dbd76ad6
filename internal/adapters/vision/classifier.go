// Package vision turns camera frames into per-camera distinct-color counts.
package vision

import (
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/okian/falcongrasp/internal/domain/color"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/metrics"
)

// Bilateral pre-filter parameters.
const (
	smoothDiameter = 9
	smoothSigma    = 75
)

// ClassifierOptions tunes the mask pipeline.
type ClassifierOptions struct {
	// KernelSize is the side of the elliptical closing kernel. Defaults to 9.
	KernelSize int
	// Smooth applies an edge-preserving bilateral filter before thresholding.
	Smooth bool
}

// ColorResult holds the accepted contours of one color.
type ColorResult struct {
	Count   int
	Boxes   []image.Rectangle
	MaxArea float64
}

// Result is the per-color outcome of one frame.
type Result struct {
	Colors map[string]ColorResult
}

// Present reports which colors had at least one accepted contour.
func (r Result) Present() map[string]bool {
	out := make(map[string]bool, len(r.Colors))
	for name, c := range r.Colors {
		out[name] = c.Count > 0
	}
	return out
}

// Events converts r into one DetectionEvent per color of names.
func (r Result) Events(camera int, names []string) []model.DetectionEvent {
	out := make([]model.DetectionEvent, len(names))
	for i, name := range names {
		c := r.Colors[name]
		out[i] = model.DetectionEvent{
			CameraIndex: camera,
			Color:       name,
			Confirmed:   c.Count > 0,
			RawArea:     c.MaxArea,
		}
	}
	return out
}

// Detector classifies one frame.
type Detector interface {
	Classify(frame gocv.Mat) Result
	Colors() []string
}

// Classifier finds sticks of each calibrated color by intersecting an HSV
// mask with a Lab mask, closing small gaps and filtering contours by size
// and shape. It is not safe for concurrent use; give each camera its own.
type Classifier struct {
	table  *color.Table
	ranges []color.Range
	smooth bool
	kernel gocv.Mat

	blurred, hsv, lab    gocv.Mat
	hsvMask, labMask     gocv.Mat
	combined, closedMask gocv.Mat
}

// NewClassifier builds a classifier for every color of table.
func NewClassifier(table *color.Table, opts ClassifierOptions) *Classifier {
	k := opts.KernelSize
	if k <= 0 {
		k = 9
	}
	return &Classifier{
		table:      table,
		ranges:     table.Ranges(),
		smooth:     opts.Smooth,
		kernel:     gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(k, k)),
		blurred:    gocv.NewMat(),
		hsv:        gocv.NewMat(),
		lab:        gocv.NewMat(),
		hsvMask:    gocv.NewMat(),
		labMask:    gocv.NewMat(),
		combined:   gocv.NewMat(),
		closedMask: gocv.NewMat(),
	}
}

// Colors lists the color names in table order.
func (c *Classifier) Colors() []string { return c.table.Names() }

// Classify runs the pipeline on a BGR frame. An empty frame yields zero
// detections for every color.
func (c *Classifier) Classify(frame gocv.Mat) Result {
	start := time.Now()
	res := Result{Colors: make(map[string]ColorResult, len(c.ranges))}
	for _, r := range c.ranges {
		res.Colors[r.Name] = ColorResult{}
	}
	if frame.Empty() || frame.Channels() != 3 {
		return res
	}

	src := frame
	if c.smooth {
		gocv.BilateralFilter(frame, &c.blurred, smoothDiameter, smoothSigma, smoothSigma)
		src = c.blurred
	}
	gocv.CvtColor(src, &c.hsv, gocv.ColorBGRToHSV)
	gocv.CvtColor(src, &c.lab, gocv.ColorBGRToLab)

	for _, r := range c.ranges {
		res.Colors[r.Name] = c.classifyColor(r)
	}
	metrics.RecordClassifyLatency(float64(time.Since(start).Microseconds()) / 1000)
	return res
}

func (c *Classifier) classifyColor(r color.Range) ColorResult {
	gocv.InRangeWithScalar(c.hsv, scalar(r.HSV.Lower), scalar(r.HSV.Upper), &c.hsvMask)
	gocv.InRangeWithScalar(c.lab, scalar(r.Lab.Lower), scalar(r.Lab.Upper), &c.labMask)
	gocv.BitwiseAnd(c.hsvMask, c.labMask, &c.combined)
	gocv.MorphologyEx(c.combined, &c.closedMask, gocv.MorphClose, c.kernel)

	contours := gocv.FindContours(c.closedMask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out ColorResult
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if !r.AcceptsArea(area) {
			continue
		}
		box := gocv.BoundingRect(contour)
		if !r.AcceptsShape(box.Dx(), box.Dy()) {
			continue
		}
		out.Count++
		out.Boxes = append(out.Boxes, box)
		if area > out.MaxArea {
			out.MaxArea = area
		}
	}
	return out
}

// Close releases the native buffers.
func (c *Classifier) Close() error {
	for _, m := range []*gocv.Mat{
		&c.kernel, &c.blurred, &c.hsv, &c.lab,
		&c.hsvMask, &c.labMask, &c.combined, &c.closedMask,
	} {
		if err := m.Close(); err != nil {
			return err
		}
	}
	return nil
}

func scalar(t color.Triple) gocv.Scalar {
	return gocv.NewScalar(float64(t[0]), float64(t[1]), float64(t[2]), 0)
}
