// Package color holds the calibrated color ranges the classifier thresholds
// frames against.
package color

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Triple is one bound in a three-channel 8-bit color space as OpenCV stores
// it: HSV with H in 0..179, Lab with every channel in 0..255.
type Triple [3]int

// Bounds is an inclusive lower/upper pair.
type Bounds struct {
	Lower Triple `yaml:"lower"`
	Upper Triple `yaml:"upper"`
}

func (b Bounds) validate(maxima Triple) error {
	for i := range b.Lower {
		lo, hi := b.Lower[i], b.Upper[i]
		if lo < 0 || hi > maxima[i] || lo > hi {
			return fmt.Errorf("channel %d bounds %d..%d outside 0..%d", i, lo, hi, maxima[i])
		}
	}
	return nil
}

var (
	hsvMax = Triple{179, 255, 255}
	labMax = Triple{255, 255, 255}
)

// Range is one calibrated color.
type Range struct {
	Name    string  `yaml:"name"`
	HSV     Bounds  `yaml:"hsv"`
	Lab     Bounds  `yaml:"lab"`
	AreaMin float64 `yaml:"area_min"`
	AreaMax float64 `yaml:"area_max"`
	// AspectRatioMax rejects contours with max(w,h)/min(w,h) at or above it.
	// Zero disables the check.
	AspectRatioMax float64 `yaml:"aspect_ratio_max,omitempty"`
}

// Validate reports whether the range can be used for thresholding.
func (r Range) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRange)
	}
	if err := r.HSV.validate(hsvMax); err != nil {
		return fmt.Errorf("%w: %s hsv: %w", ErrInvalidRange, r.Name, err)
	}
	if err := r.Lab.validate(labMax); err != nil {
		return fmt.Errorf("%w: %s lab: %w", ErrInvalidRange, r.Name, err)
	}
	if r.AreaMin < 0 || r.AreaMax <= 0 || r.AreaMin > r.AreaMax {
		return fmt.Errorf("%w: %s area %.0f..%.0f", ErrInvalidRange, r.Name, r.AreaMin, r.AreaMax)
	}
	if r.AspectRatioMax < 0 {
		return fmt.Errorf("%w: %s negative aspect ceiling", ErrInvalidRange, r.Name)
	}
	return nil
}

// AcceptsArea reports whether area lies within the inclusive area bounds.
func (r Range) AcceptsArea(area float64) bool {
	return area >= r.AreaMin && area <= r.AreaMax
}

// AcceptsShape reports whether a w×h bounding box passes the aspect ceiling.
func (r Range) AcceptsShape(w, h int) bool {
	if r.AspectRatioMax <= 0 {
		return true
	}
	lo, hi := w, h
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		return false
	}
	return float64(hi)/float64(lo) < r.AspectRatioMax
}

// Table is an ordered, immutable set of calibrated colors.
type Table struct {
	ranges []Range
	index  map[string]int
}

// NewTable validates ranges and builds a table preserving their order.
func NewTable(ranges ...Range) (*Table, error) {
	t := &Table{
		ranges: make([]Range, 0, len(ranges)),
		index:  make(map[string]int, len(ranges)),
	}
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.index[r.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColor, r.Name)
		}
		t.index[r.Name] = len(t.ranges)
		t.ranges = append(t.ranges, r)
	}
	return t, nil
}

// Len returns the number of colors, the upper bound of any distinct count.
func (t *Table) Len() int { return len(t.ranges) }

// Ranges returns a copy of the ranges in table order.
func (t *Table) Ranges() []Range {
	out := make([]Range, len(t.ranges))
	copy(out, t.ranges)
	return out
}

// Names returns the color names in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.ranges))
	for i, r := range t.ranges {
		out[i] = r.Name
	}
	return out
}

// Get returns the range for name.
func (t *Table) Get(name string) (Range, bool) {
	i, ok := t.index[name]
	if !ok {
		return Range{}, false
	}
	return t.ranges[i], true
}

// Require fails with ErrMissingColor for the first name without an entry.
func (t *Table) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColor, strings.Join(missing, ", "))
	}
	return nil
}

type tableFile struct {
	Colors []Range `yaml:"colors"`
}

// ParseTable decodes a YAML document with a top-level "colors" list.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadTable, err)
	}
	if len(f.Colors) == 0 {
		return nil, fmt.Errorf("%w: no colors defined", ErrLoadTable)
	}
	return NewTable(f.Colors...)
}

// LoadTable reads and parses a YAML color table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadTable, err)
	}
	return ParseTable(data)
}

// Marshal encodes the table in the format ParseTable reads.
func (t *Table) Marshal() ([]byte, error) {
	return yaml.Marshal(tableFile{Colors: t.Ranges()})
}
