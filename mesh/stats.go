package mesh

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Stats summarizes a mesh.
type Stats struct {
	Vertices  int
	Triangles int

	DepthMin    float64
	DepthMax    float64
	DepthMean   float64
	DepthMedian float64
	DepthStdDev float64

	// MeanEdgeLength is the mean length of the a-b and a-c edges of all triangles.
	MeanEdgeLength float64
	// NormalCoverage is the fraction of vertices with a non-zero normal.
	NormalCoverage float64
	// TexturedFraction is the fraction of vertices with a texture coordinate.
	TexturedFraction float64
}

// ComputeStats computes Stats over the vertex depths, triangle edges and attributes of m.
// An empty mesh yields zero Stats.
func ComputeStats(m *Mesh) (Stats, error) {
	s := Stats{Vertices: m.VertexCount(), Triangles: m.TriangleCount()}
	if s.Vertices == 0 {
		return s, nil
	}

	depths := make(stats.Float64Data, 0, s.Vertices)
	for _, v := range m.Vertices {
		depths = append(depths, v.Z)
	}
	var err error
	if s.DepthMin, err = depths.Min(); err != nil {
		return s, errors.Wrap(err, "depth min")
	}
	if s.DepthMax, err = depths.Max(); err != nil {
		return s, errors.Wrap(err, "depth max")
	}
	if s.DepthMean, err = depths.Mean(); err != nil {
		return s, errors.Wrap(err, "depth mean")
	}
	if s.DepthMedian, err = depths.Median(); err != nil {
		return s, errors.Wrap(err, "depth median")
	}
	if s.DepthStdDev, err = depths.StandardDeviation(); err != nil {
		return s, errors.Wrap(err, "depth standard deviation")
	}

	if s.Triangles > 0 {
		edges := make(stats.Float64Data, 0, 2*s.Triangles)
		for i := 0; i < s.Triangles; i++ {
			a, b, c := m.TriangleVertices(i)
			edges = append(edges, a.Distance(b), a.Distance(c))
		}
		if s.MeanEdgeLength, err = edges.Mean(); err != nil {
			return s, errors.Wrap(err, "edge length mean")
		}
	}

	withNormal := 0
	for _, n := range m.Normals {
		if n.Norm2() > 0 {
			withNormal++
		}
	}
	s.NormalCoverage = float64(withNormal) / float64(s.Vertices)
	if m.HasTexCoords() {
		s.TexturedFraction = 1
	}
	return s, nil
}
