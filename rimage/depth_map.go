// Package rimage holds the depth and colour frame types consumed by the reconstruction pipeline.
package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// Depth is the depth reported by a depth sensor, in the sensor's native units (usually mm).
type Depth uint16

// MaxDepth is the largest representable depth value.
const MaxDepth = Depth(math.MaxUint16)

// DepthMap is a dense row-major grid of 16-bit depth samples. A zero depth means the sensor
// reported no return for that pixel.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromRaw wraps a copy of row-major raw samples in a depth map.
func NewDepthMapFromRaw(width, height int, raw []uint16) (*DepthMap, error) {
	dm := NewEmptyDepthMap(width, height)
	if err := dm.SetFromRaw(raw); err != nil {
		return nil, err
	}
	return dm, nil
}

// HasData returns whether the depth map has been allocated.
func (dm *DepthMap) HasData() bool {
	return dm != nil && dm.width > 0 && dm.height > 0 && len(dm.data) == dm.width*dm.height
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covered by the depth map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains returns whether (x, y) lies inside the depth map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// Set sets the depth at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// Raw returns the backing row-major buffer. Writes through it modify the depth map.
func (dm *DepthMap) Raw() []Depth {
	return dm.data
}

// SetFromRaw copies row-major raw samples into the existing buffer. The sample count must
// equal Width*Height.
func (dm *DepthMap) SetFromRaw(raw []uint16) error {
	if len(raw) != len(dm.data) {
		return errors.Errorf("raw depth has %d samples, depth map (%d,%d) needs %d",
			len(raw), dm.width, dm.height, len(dm.data))
	}
	for i, d := range raw {
		dm.data[i] = Depth(d)
	}
	return nil
}

// CopyFrom copies the samples of other into the existing buffer. Dimensions must match.
func (dm *DepthMap) CopyFrom(other *DepthMap) error {
	if other == nil {
		return errors.New("input DepthMap is nil")
	}
	if dm.width != other.width || dm.height != other.height {
		return errors.Errorf("depth map dimensions don't match (%d,%d) != (%d,%d)",
			dm.width, dm.height, other.width, other.height)
	}
	copy(dm.data, other.data)
	return nil
}

// Clone makes a deep copy of the depth map.
func (dm *DepthMap) Clone() *DepthMap {
	ret := NewEmptyDepthMap(dm.width, dm.height)
	copy(ret.data, dm.data)
	return ret
}

// MinMax returns the smallest and largest non-zero depth. Both are zero when the map is empty.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	min := MaxDepth
	max := Depth(0)
	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}

// ToGray16Picture converts the depth map to a 16-bit grayscale image holding the raw depth.
func (dm *DepthMap) ToGray16Picture() *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			img.SetGray16(x, y, color.Gray16{uint16(dm.GetDepth(x, y))})
		}
	}
	return img
}

// ConvertImageToDepthMap takes an image and converts it to a depth map. 16-bit grayscale images
// keep their exact values; other images use their 16-bit luminance.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	bounds := img.Bounds()
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	switch ii := img.(type) {
	case *DepthMap:
		return ii.Clone(), nil
	case *image.Gray16:
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				dm.Set(x, y, Depth(ii.Gray16At(x+bounds.Min.X, y+bounds.Min.Y).Y))
			}
		}
	default:
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				g := color.Gray16Model.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray16)
				dm.Set(x, y, Depth(g.Y))
			}
		}
	}
	return dm, nil
}

// ColorModel lets DepthMap satisfy image.Image.
func (dm *DepthMap) ColorModel() color.Model {
	return color.Gray16Model
}

// At returns the depth at (x, y) as a Gray16 color.
func (dm *DepthMap) At(x, y int) color.Color {
	if !dm.Contains(x, y) {
		return color.Gray16{}
	}
	return color.Gray16{uint16(dm.GetDepth(x, y))}
}
