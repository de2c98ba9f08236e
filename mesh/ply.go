package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// WritePLY writes m as an ascii PLY file. Vertices carry x, y, z, then nx, ny, nz when the mesh
// has normals and s, t when it has texture coordinates. Faces are written as vertex_indices lists.
func WritePLY(out io.Writer, m *Mesh) error {
	w := bufio.NewWriter(out)
	hasNormals, hasTexCoords := m.HasNormals(), m.HasTexCoords()

	fmt.Fprintf(w, "ply\nformat ascii 1.0\ncomment rgbdmesh\nelement vertex %d\n", len(m.Vertices))
	fmt.Fprint(w, "property double x\nproperty double y\nproperty double z\n")
	if hasNormals {
		fmt.Fprint(w, "property double nx\nproperty double ny\nproperty double nz\n")
	}
	if hasTexCoords {
		fmt.Fprint(w, "property double s\nproperty double t\n")
	}
	fmt.Fprintf(w, "element face %d\nproperty list uchar uint vertex_indices\nend_header\n", m.TriangleCount())

	buf := make([]byte, 0, 256)
	for i, v := range m.Vertices {
		buf = appendFloats(buf[:0], v.X, v.Y, v.Z)
		if hasNormals {
			n := m.Normals[i]
			buf = appendFloats(buf, n.X, n.Y, n.Z)
		}
		if hasTexCoords {
			tc := m.TexCoords[i]
			buf = appendFloats(buf, tc.X, tc.Y)
		}
		buf[len(buf)-1] = '\n'
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Triangle(i)
		if _, err := fmt.Fprintf(w, "3 %d %d %d\n", a, b, c); err != nil {
			return err
		}
	}
	return w.Flush()
}

func appendFloats(buf []byte, vals ...float64) []byte {
	for _, v := range vals {
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, ' ')
	}
	return buf
}

// WritePLYFile writes m to fn.
func WritePLYFile(fn string, m *Mesh) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WritePLY(f, m)
}

// ReadPLY reads an ascii PLY file with a vertex element (x, y, z and optionally nx, ny, nz and
// s, t) and a face element of triangles.
func ReadPLY(in io.Reader) (m *Mesh, err error) {
	defer func() {
		// the PLY parser panics on malformed input
		if r := recover(); r != nil {
			m, err = nil, errors.Errorf("invalid PLY data: %v", r)
		}
	}()
	ply := goply.New(bufio.NewReader(in))
	vertices := ply.Elements("vertex")
	faces := ply.Elements("face")

	m = &Mesh{Vertices: make([]r3.Vector, 0, len(vertices))}
	for i, vertex := range vertices {
		p, err := plyVector(vertex, "x", "y", "z")
		if err != nil {
			return nil, errors.Wrapf(err, "vertex %d", i)
		}
		m.Vertices = append(m.Vertices, p)
		if _, ok := vertex["nx"]; ok {
			n, err := plyVector(vertex, "nx", "ny", "nz")
			if err != nil {
				return nil, errors.Wrapf(err, "vertex %d", i)
			}
			m.Normals = append(m.Normals, n)
		}
		if _, ok := vertex["s"]; ok {
			s, err := plyFloat(vertex, "s")
			if err != nil {
				return nil, errors.Wrapf(err, "vertex %d", i)
			}
			t, err := plyFloat(vertex, "t")
			if err != nil {
				return nil, errors.Wrapf(err, "vertex %d", i)
			}
			m.TexCoords = append(m.TexCoords, r2.Point{X: s, Y: t})
		}
	}

	m.Indices = make([]uint32, 0, 3*len(faces))
	for i, face := range faces {
		list, ok := face["vertex_indices"].([]interface{})
		if !ok || len(list) != 3 {
			return nil, errors.Errorf("face %d is not a triangle", i)
		}
		for _, idx := range list {
			vi, err := plyIndex(idx)
			if err != nil {
				return nil, errors.Wrapf(err, "face %d", i)
			}
			if int(vi) >= len(m.Vertices) {
				return nil, errors.Errorf("face %d references vertex %d of %d", i, vi, len(m.Vertices))
			}
			m.Indices = append(m.Indices, vi)
		}
	}
	return m, nil
}

// ReadPLYFile reads a mesh from fn.
func ReadPLYFile(fn string) (*Mesh, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadPLY(f)
}

func plyVector(elem goply.PlyElement, x, y, z string) (r3.Vector, error) {
	var out [3]float64
	for i, name := range []string{x, y, z} {
		v, err := plyFloat(elem, name)
		if err != nil {
			return r3.Vector{}, err
		}
		out[i] = v
	}
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}, nil
}

func plyFloat(elem goply.PlyElement, name string) (float64, error) {
	switch v := elem[name].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case nil:
		return 0, errors.Errorf("missing property %q", name)
	default:
		return 0, errors.Errorf("property %q has unsupported type %T", name, v)
	}
}

func plyIndex(v interface{}) (uint32, error) {
	switch idx := v.(type) {
	case uint32:
		return idx, nil
	case int32:
		if idx < 0 {
			return 0, errors.Errorf("negative vertex index %d", idx)
		}
		return uint32(idx), nil
	case uint16:
		return uint32(idx), nil
	case int16:
		if idx < 0 {
			return 0, errors.Errorf("negative vertex index %d", idx)
		}
		return uint32(idx), nil
	case uint8:
		return uint32(idx), nil
	default:
		return 0, errors.Errorf("vertex index has unsupported type %T", v)
	}
}
