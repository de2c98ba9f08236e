package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/rgbdmesh/mesh"
	"go.viam.com/rgbdmesh/rgbd"
)

var depthFrameExts = map[string]bool{".png": true, ".tif": true, ".tiff": true}

// WatchAction is the corresponding action for 'watch'.
func WatchAction(c *cli.Context) error {
	return withSession(c, func(s *session) error {
		r, err := s.reconstructor()
		if err != nil {
			return err
		}
		outDir := c.Path(flagOutDir)
		//nolint:gosec
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer func() {
			if err := watcher.Close(); err != nil {
				s.logger.Errorw("error closing watcher", "error", err)
			}
		}()
		framesDir := c.Path(flagFrames)
		if err := watcher.Add(framesDir); err != nil {
			return errors.Wrapf(err, "cannot watch %q", framesDir)
		}
		s.logger.Infow("watching for depth frames", "dir", framesDir, "out", outDir)

		return watchFrames(c, s, r, watcher, outDir)
	})
}

func watchFrames(c *cli.Context, s *session, r *rgbd.Reconstructor, watcher *fsnotify.Watcher, outDir string) error {
	maxFrames := c.Int(flagMaxFrames)
	var done int
	for {
		select {
		case <-c.Context.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Errorw("watcher error", "error", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !depthFrameExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			out, err := reconstructFrame(r, event.Name, outDir)
			if err != nil {
				// frames may be seen before they are fully written; a later write event retries
				warningf(c.App.ErrWriter, "skipping %s: %v", event.Name, err)
				continue
			}
			res := r.LastResult()
			s.logger.Infow("wrote mesh", "frame", event.Name, "out", out,
				"vertices", res.Vertices, "triangles", res.Emitted, "took", res.Total)
			done++
			if maxFrames > 0 && done >= maxFrames {
				return nil
			}
		}
	}
}

// reconstructFrame rebuilds the mesh from depthFile and writes it to outDir under the frame's
// base name.
func reconstructFrame(r *rgbd.Reconstructor, depthFile, outDir string) (string, error) {
	if err := reconstructFile(r, depthFile); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(depthFile), filepath.Ext(depthFile))
	out := filepath.Join(outDir, base+".ply")
	return out, mesh.WritePLYFile(out, r.Mesh())
}
