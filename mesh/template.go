package mesh

// MinStride and MaxStride bound the grid subsampling factor.
const (
	MinStride = 1
	MaxStride = 8
)

// ClampStride limits s to [MinStride, MaxStride].
func ClampStride(s int) int {
	if s < MinStride {
		return MinStride
	}
	if s > MaxStride {
		return MaxStride
	}
	return s
}

// IndexTemplate is the fixed triangulation of a subsampled depth grid. Slot (gx, gy) samples
// depth pixel (gx*stride, gy*stride) and has index gx + gy*Cols. Every grid cell contributes
// two triangles, (a, a+1, a+Cols) and (a+1, a+Cols, a+Cols+1), where a is the cell's top left
// slot. The template only depends on the sensor size and the stride.
type IndexTemplate struct {
	width   int
	height  int
	stride  int
	cols    int
	rows    int
	triples []uint32
}

// NewIndexTemplate builds the template for a width x height depth frame. The stride is clamped
// to [MinStride, MaxStride].
func NewIndexTemplate(width, height, stride int) *IndexTemplate {
	stride = ClampStride(stride)
	tpl := &IndexTemplate{width: width, height: height, stride: stride}
	if width > 0 && height > 0 {
		tpl.cols = width / stride
		tpl.rows = height / stride
	}
	if tpl.cols < 2 || tpl.rows < 2 {
		return tpl
	}

	cols := uint32(tpl.cols)
	tpl.triples = make([]uint32, 0, (tpl.cols-1)*(tpl.rows-1)*6)
	for gy := 0; gy < tpl.rows-1; gy++ {
		for gx := 0; gx < tpl.cols-1; gx++ {
			a := uint32(gx) + uint32(gy)*cols
			tpl.triples = append(tpl.triples,
				a, a+1, a+cols,
				a+1, a+cols, a+cols+1,
			)
		}
	}
	return tpl
}

// Width returns the depth frame width the template was built for.
func (tpl *IndexTemplate) Width() int { return tpl.width }

// Height returns the depth frame height the template was built for.
func (tpl *IndexTemplate) Height() int { return tpl.height }

// Stride returns the clamped stride.
func (tpl *IndexTemplate) Stride() int { return tpl.stride }

// Cols returns the number of grid columns.
func (tpl *IndexTemplate) Cols() int { return tpl.cols }

// Rows returns the number of grid rows.
func (tpl *IndexTemplate) Rows() int { return tpl.rows }

// Slots returns the number of grid slots.
func (tpl *IndexTemplate) Slots() int { return tpl.cols * tpl.rows }

// TriangleCount returns the number of candidate triangles.
func (tpl *IndexTemplate) TriangleCount() int { return len(tpl.triples) / 3 }

// Triangle returns the slot indices of the i-th candidate triangle.
func (tpl *IndexTemplate) Triangle(i int) (uint32, uint32, uint32) {
	return tpl.triples[3*i], tpl.triples[3*i+1], tpl.triples[3*i+2]
}

// Matches reports whether the template was built for the given frame size and stride.
func (tpl *IndexTemplate) Matches(width, height, stride int) bool {
	return tpl != nil && tpl.width == width && tpl.height == height && tpl.stride == ClampStride(stride)
}

// SlotPixel returns the depth pixel sampled by a slot.
func (tpl *IndexTemplate) SlotPixel(slot int) (int, int) {
	return (slot % tpl.cols) * tpl.stride, (slot / tpl.cols) * tpl.stride
}

// Slot records whether a grid slot produced a vertex and, if so, which one.
type Slot struct {
	VertexIndex uint32
	Valid       bool
}

// ValidityMap holds one Slot per grid slot in slot order.
type ValidityMap []Slot

// Resize makes the map hold n slots, all invalid, reusing storage when possible.
func (vm *ValidityMap) Resize(n int) {
	if cap(*vm) < n {
		*vm = make(ValidityMap, n)
		return
	}
	*vm = (*vm)[:n]
	for i := range *vm {
		(*vm)[i] = Slot{}
	}
}

// ValidCount returns the number of valid slots.
func (vm ValidityMap) ValidCount() int {
	n := 0
	for _, s := range vm {
		if s.Valid {
			n++
		}
	}
	return n
}
