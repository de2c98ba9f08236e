// Package mesh holds the indexed triangle mesh produced from a depth frame, the slot grid
// template used to triangulate it, and PLY input and output.
package mesh

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Mesh is an indexed triangle mesh. Every three consecutive entries of Indices form one triangle
// referring to Vertices. Normals, when present, has one entry per vertex; TexCoords, when present,
// has one entry per vertex in color image pixels.
type Mesh struct {
	Vertices  []r3.Vector
	Normals   []r3.Vector
	TexCoords []r2.Point
	Indices   []uint32
}

// Reset empties the mesh while keeping the underlying storage for the next frame.
func (m *Mesh) Reset() {
	m.Vertices = m.Vertices[:0]
	m.Normals = m.Normals[:0]
	m.TexCoords = m.TexCoords[:0]
	m.Indices = m.Indices[:0]
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// HasNormals reports whether there is a normal for every vertex.
func (m *Mesh) HasNormals() bool {
	return len(m.Vertices) > 0 && len(m.Normals) == len(m.Vertices)
}

// HasTexCoords reports whether there is a texture coordinate for every vertex.
func (m *Mesh) HasTexCoords() bool {
	return len(m.Vertices) > 0 && len(m.TexCoords) == len(m.Vertices)
}

// Triangle returns the vertex indices of the i-th triangle.
func (m *Mesh) Triangle(i int) (uint32, uint32, uint32) {
	return m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]
}

// TriangleVertices returns the corners of the i-th triangle.
func (m *Mesh) TriangleVertices(i int) (r3.Vector, r3.Vector, r3.Vector) {
	a, b, c := m.Triangle(i)
	return m.Vertices[a], m.Vertices[b], m.Vertices[c]
}

// Clone returns a deep copy of the mesh that shares no storage with m.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices:  append([]r3.Vector(nil), m.Vertices...),
		Normals:   append([]r3.Vector(nil), m.Normals...),
		TexCoords: append([]r2.Point(nil), m.TexCoords...),
		Indices:   append([]uint32(nil), m.Indices...),
	}
}
