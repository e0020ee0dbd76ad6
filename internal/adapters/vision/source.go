package vision

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	"github.com/okian/falcongrasp/internal/config"
)

// FrameSource delivers BGR frames for one camera.
type FrameSource interface {
	// Read copies the next frame into dst. ErrSourceLost means the source
	// must be reopened before it delivers again.
	Read(dst *gocv.Mat) error
	// Open (re)opens the underlying device, file or stream.
	Open() error
	Close() error
	String() string
}

// SourceKind tells how a source is opened and how it ends.
type SourceKind int

// Source kinds.
const (
	SourceDevice SourceKind = iota
	SourceFile
	SourceStream
)

// KindOf classifies a configured source string.
func KindOf(src string) SourceKind {
	switch {
	case strings.Contains(src, "://"):
		return SourceStream
	case isDeviceIndex(src):
		return SourceDevice
	default:
		return SourceFile
	}
}

func isDeviceIndex(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0
}

// CaptureSource reads from an OpenCV capture. Files loop at the end;
// devices and streams report ErrSourceLost when a read fails.
type CaptureSource struct {
	src  string
	kind SourceKind
	crop image.Rectangle

	capture *gocv.VideoCapture
	raw     gocv.Mat
}

// NewCaptureSource prepares a source for cam. Call Open before Read.
func NewCaptureSource(cam config.CameraConfig) *CaptureSource {
	s := &CaptureSource{
		src:  cam.Source,
		kind: KindOf(cam.Source),
		raw:  gocv.NewMat(),
	}
	if cam.Crop.Width > 0 && cam.Crop.Height > 0 {
		s.crop = image.Rect(cam.Crop.X, cam.Crop.Y, cam.Crop.X+cam.Crop.Width, cam.Crop.Y+cam.Crop.Height)
	}
	return s
}

func (s *CaptureSource) String() string { return s.src }

// Open opens the capture, closing any previous one.
func (s *CaptureSource) Open() error {
	s.closeCapture()

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if s.kind == SourceDevice {
		n, _ := strconv.Atoi(s.src)
		vc, err = gocv.OpenVideoCapture(n)
	} else {
		vc, err = gocv.OpenVideoCapture(s.src)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSourceOpen, s.src, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return fmt.Errorf("%w: %s", ErrSourceOpen, s.src)
	}
	if s.kind == SourceStream {
		vc.Set(gocv.VideoCaptureBufferSize, 1)
	}
	s.capture = vc
	return nil
}

// Read copies the next frame, cropped when a crop is configured.
func (s *CaptureSource) Read(dst *gocv.Mat) error {
	if s.capture == nil {
		return ErrSourceLost
	}
	if !s.capture.Read(&s.raw) || s.raw.Empty() {
		if s.kind != SourceFile {
			return fmt.Errorf("%w: %s", ErrSourceLost, s.src)
		}
		s.capture.Set(gocv.VideoCapturePosFrames, 0)
		if !s.capture.Read(&s.raw) || s.raw.Empty() {
			return fmt.Errorf("%w: %s", ErrSourceLost, s.src)
		}
	}

	if s.crop.Empty() {
		s.raw.CopyTo(dst)
		return nil
	}
	rect := s.crop.Intersect(image.Rect(0, 0, s.raw.Cols(), s.raw.Rows()))
	if rect.Empty() {
		return fmt.Errorf("%w: crop %v outside %dx%d frame", ErrEmptyFrame, s.crop, s.raw.Cols(), s.raw.Rows())
	}
	region := s.raw.Region(rect)
	defer region.Close()
	region.CopyTo(dst)
	return nil
}

func (s *CaptureSource) closeCapture() {
	if s.capture != nil {
		_ = s.capture.Close()
		s.capture = nil
	}
}

// Close releases the capture and the frame buffer.
func (s *CaptureSource) Close() error {
	s.closeCapture()
	return s.raw.Close()
}
