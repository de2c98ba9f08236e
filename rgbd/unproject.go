package rgbd

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"

	"go.viam.com/rgbdmesh/mesh"
	"go.viam.com/rgbdmesh/rimage"
	"go.viam.com/rgbdmesh/rimage/transform"
)

// unprojector turns depth samples into depth camera space points. Its field of view terms are
// computed once per update.
type unprojector struct {
	ppx, ppy float64
	imgW     float64
	imgH     float64
	fx, fy   float64

	xShift, yShift float64
	farClip        float64
	mirror         bool
	// jitter returns the noise added to a valid sample; nil disables it.
	jitter func() float64
}

func newUnprojector(intrinsics *transform.PinholeCameraIntrinsics, cfg Config, jitter func() float64) *unprojector {
	fovX, fovY := intrinsics.FieldOfView()
	return &unprojector{
		ppx:     intrinsics.Ppx,
		ppy:     intrinsics.Ppy,
		imgW:    float64(intrinsics.Width),
		imgH:    float64(intrinsics.Height),
		fx:      2 * math.Tan(fovX/2),
		fy:      2 * math.Tan(fovY/2),
		xShift:  cfg.XShift,
		yShift:  cfg.YShift,
		farClip: cfg.FarClip,
		mirror:  cfg.Mirror,
		jitter:  jitter,
	}
}

// valid reports whether a depth sample produces a vertex.
func (u *unprojector) valid(d rimage.Depth) bool {
	return d != 0 && float64(d) < u.farClip
}

// point unprojects pixel (x, y) at depth z.
func (u *unprojector) point(x, y int, z float64) r3.Vector {
	var xReal float64
	if u.mirror {
		xReal = (u.ppx - float64(x) - u.xShift) / u.imgW * z * u.fx
	} else {
		xReal = (float64(x) - u.ppx + u.xShift) / u.imgW * z * u.fx
	}
	yReal := (float64(y) - u.ppy + u.yShift) / u.imgH * z * u.fy
	return r3.Vector{X: xReal, Y: yReal, Z: z}
}

// unproject appends one vertex per valid slot of tpl to m in slot order and records it in vm,
// which must already be sized to the template and cleared. It returns the number of vertices added.
func (u *unprojector) unproject(depth *rimage.DepthMap, tpl *mesh.IndexTemplate, m *mesh.Mesh, vm mesh.ValidityMap) int {
	added := 0
	stride := tpl.Stride()
	cols := tpl.Cols()
	for gy := 0; gy < tpl.Rows(); gy++ {
		y := gy * stride
		for gx := 0; gx < cols; gx++ {
			x := gx * stride
			d := depth.GetDepth(x, y)
			if !u.valid(d) {
				continue
			}
			z := float64(d)
			if u.jitter != nil {
				z += u.jitter()
			}
			vm[gx+gy*cols] = mesh.Slot{VertexIndex: uint32(len(m.Vertices)), Valid: true}
			m.Vertices = append(m.Vertices, u.point(x, y, z))
			added++
		}
	}
	return added
}

// uniformJitter returns a function drawing uniformly from [-amplitude, amplitude]. A nil
// function means no jitter.
func uniformJitter(rng *rand.Rand, amplitude float64) func() float64 {
	if amplitude <= 0 || rng == nil {
		return nil
	}
	return func() float64 {
		return (2*rng.Float64() - 1) * amplitude
	}
}
