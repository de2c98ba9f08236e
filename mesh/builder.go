package mesh

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// BuildOptions controls triangle emission.
type BuildOptions struct {
	// EdgeCull rejects a triangle when the depth of its first vertex differs from the depth of
	// either other vertex by this much or more.
	EdgeCull float64
	// CalculateNormals assigns a face normal to the first vertex of each winning triangle.
	CalculateNormals bool
}

// BuildResult counts what happened to the candidate triangles of one build.
type BuildResult struct {
	Considered     int
	SkippedInvalid int
	Culled         int
	Emitted        int
	NormalsSet     int
}

// BuildTriangles walks the template in order and appends to m.Indices every candidate triangle
// whose three slots are valid and that passes the edge cull. The b-c edge is not tested.
// When normals are requested, m.Normals is resized to the vertex count and zeroed first, and
// a vertex takes the normal of the first emitted triangle whose first corner it is.
func BuildTriangles(m *Mesh, tpl *IndexTemplate, vm ValidityMap, opts BuildOptions) (BuildResult, error) {
	var res BuildResult
	if len(vm) != tpl.Slots() {
		return res, errors.Errorf("validity map has %d slots, template expects %d", len(vm), tpl.Slots())
	}

	var normalSet []bool
	if opts.CalculateNormals {
		n := len(m.Vertices)
		if cap(m.Normals) < n {
			m.Normals = make([]r3.Vector, n)
		} else {
			m.Normals = m.Normals[:n]
			for i := range m.Normals {
				m.Normals[i] = r3.Vector{}
			}
		}
		normalSet = make([]bool, n)
	}

	for i := 0; i < tpl.TriangleCount(); i++ {
		res.Considered++
		sa, sb, sc := tpl.Triangle(i)
		a, b, c := vm[sa], vm[sb], vm[sc]
		if !a.Valid || !b.Valid || !c.Valid {
			res.SkippedInvalid++
			continue
		}
		va, vb, vc := m.Vertices[a.VertexIndex], m.Vertices[b.VertexIndex], m.Vertices[c.VertexIndex]
		if math.Abs(va.Z-vb.Z) >= opts.EdgeCull || math.Abs(va.Z-vc.Z) >= opts.EdgeCull {
			res.Culled++
			continue
		}
		m.Indices = append(m.Indices, a.VertexIndex, b.VertexIndex, c.VertexIndex)
		res.Emitted++

		if opts.CalculateNormals && !normalSet[a.VertexIndex] {
			m.Normals[a.VertexIndex] = FaceNormal(va, vb, vc)
			normalSet[a.VertexIndex] = true
			res.NormalsSet++
		}
	}
	return res, nil
}

// FaceNormal returns the unit normal of cross(b-a, b-c). A degenerate triangle yields the zero vector.
func FaceNormal(a, b, c r3.Vector) r3.Vector {
	return b.Sub(a).Cross(b.Sub(c)).Normalize()
}
