package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"go.viam.com/rgbdmesh/mesh"
	"go.viam.com/rgbdmesh/rgbd"
	"go.viam.com/rgbdmesh/rimage"
)

// ReconstructAction is the corresponding action for 'reconstruct'.
func ReconstructAction(c *cli.Context) error {
	return withSession(c, func(s *session) error {
		r, err := s.reconstructor()
		if err != nil {
			return err
		}
		if err := reconstructFile(r, c.Path(flagDepth)); err != nil {
			return err
		}
		out := c.Path(flagOut)
		if err := mesh.WritePLYFile(out, r.Mesh()); err != nil {
			return err
		}
		res := r.LastResult()
		infof(c.App.Writer, "wrote %d vertices and %d triangles to %s", res.Vertices, res.Emitted, out)
		return nil
	})
}

// StatsAction is the corresponding action for 'stats'.
func StatsAction(c *cli.Context) error {
	return withSession(c, func(s *session) error {
		r, err := s.reconstructor()
		if err != nil {
			return err
		}
		if err := reconstructFile(r, c.Path(flagDepth)); err != nil {
			return err
		}
		st, err := mesh.ComputeStats(r.Mesh())
		if err != nil {
			return err
		}
		printf(c.App.Writer, "%s", statsTable(st, r.LastResult()))
		return nil
	})
}

func statsTable(st mesh.Stats, res rgbd.UpdateResult) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Stat", "Value"})
	t.AppendRows([]table.Row{
		{"vertices", st.Vertices},
		{"triangles", st.Triangles},
		{"triangles culled", res.Culled},
		{"triangles skipped (invalid vertex)", res.SkippedInvalid},
		{"depth min", fmt.Sprintf("%.1f", st.DepthMin)},
		{"depth max", fmt.Sprintf("%.1f", st.DepthMax)},
		{"depth mean", fmt.Sprintf("%.1f", st.DepthMean)},
		{"depth median", fmt.Sprintf("%.1f", st.DepthMedian)},
		{"depth stddev", fmt.Sprintf("%.1f", st.DepthStdDev)},
		{"mean edge length", fmt.Sprintf("%.2f", st.MeanEdgeLength)},
		{"normal coverage", fmt.Sprintf("%.1f%%", 100*st.NormalCoverage)},
		{"textured", fmt.Sprintf("%.1f%%", 100*st.TexturedFraction)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"undistort", res.Undistort},
		{"unproject", res.Unproject},
		{"triangulate", res.Triangulate},
		{"reproject", res.Reproject},
		{"total", res.Total},
	})
	return t.Render()
}

// UndistortAction is the corresponding action for 'undistort'.
func UndistortAction(c *cli.Context) error {
	return withSession(c, func(s *session) error {
		calib, err := s.calibration()
		if err != nil {
			return err
		}
		dm, err := rimage.ReadDepthMapFromFile(c.Path(flagDepth))
		if err != nil {
			return err
		}
		undistorted, err := calib.Depth.UndistortDepthMap(dm)
		if err != nil {
			return err
		}
		out := c.Path(flagOut)
		if err := rimage.WriteDepthMapToFile(out, undistorted); err != nil {
			return err
		}
		infof(c.App.Writer, "wrote undistorted %dx%d depth frame to %s", undistorted.Width(), undistorted.Height(), out)
		return nil
	})
}
