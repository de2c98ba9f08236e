package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/rgbdmesh/config"
	"go.viam.com/rgbdmesh/logging"
	"go.viam.com/rgbdmesh/rgbd"
	"go.viam.com/rgbdmesh/rimage"
	"go.viam.com/rgbdmesh/rimage/transform"
)

// session is what every command needs: the resolved config and a logger writing to the
// app's error writer and, optionally, a log file.
type session struct {
	c       *cli.Context
	cfg     *config.Config
	logger  logging.Logger
	closers []func() error
}

func newSession(c *cli.Context) (*session, error) {
	cfg := config.Default()
	if fn := c.Path(flagConfig); fn != "" {
		var err error
		if cfg, err = config.Read(fn); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyOverrides(c.StringSlice(flagSet)); err != nil {
		return nil, err
	}
	if fn := c.Path(flagLogFile); fn != "" {
		cfg.Logging.File = fn
	}
	if dir := c.Path(flagCalibration); dir != "" {
		cfg.CalibrationDir = dir
	}

	level, err := cfg.Logging.ParsedLevel()
	if err != nil {
		return nil, err
	}
	if c.Bool(flagDebug) {
		level = logging.DEBUG
	}
	logger := logging.NewBlankLogger("rgbdmesh")
	logger.SetLevel(level)
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))

	s := &session{c: c, cfg: cfg, logger: logger}
	if cfg.Logging.File != "" {
		fileAppender := logging.NewFileAppender(cfg.Logging.FileAppenderConfig())
		logger.AddAppender(fileAppender)
		s.closers = append(s.closers, fileAppender.Close)
	}
	logger.Debugw("configuration", "file", cfg.ConfigFilePath, "reconstruction", cfg.Reconstruction)
	return s, nil
}

func (s *session) close() error {
	err := s.logger.Sync()
	for _, closer := range s.closers {
		err = multierr.Combine(err, closer())
	}
	return err
}

func (s *session) calibration() (*transform.Calibration, error) {
	if s.cfg.CalibrationDir == "" {
		return nil, errors.Errorf("no calibration directory, pass --%s or set calibration_dir", flagCalibration)
	}
	return transform.NewCalibrationFromDirectory(s.cfg.CalibrationDir)
}

// reconstructor builds a Reconstructor sized to the depth camera of the calibration.
func (s *session) reconstructor() (*rgbd.Reconstructor, error) {
	calib, err := s.calibration()
	if err != nil {
		return nil, err
	}
	r, err := rgbd.NewReconstructor(s.logger.Sublogger("rgbd"),
		rgbd.WithSensorSize(calib.Depth.Width, calib.Depth.Height),
		rgbd.WithConfig(s.cfg.Reconstruction))
	if err != nil {
		return nil, err
	}
	if err := r.SetCalibration(calib); err != nil {
		return nil, err
	}
	if fn := s.c.Path(flagColor); fn != "" {
		img, err := rimage.ReadImageFromFile(fn)
		if err != nil {
			return nil, err
		}
		r.SetColorImage(img)
	}
	return r, nil
}

// reconstructFile loads a depth frame into r and rebuilds the mesh.
func reconstructFile(r *rgbd.Reconstructor, depthFile string) error {
	dm, err := rimage.ReadDepthMapFromFile(depthFile)
	if err != nil {
		return err
	}
	if err := r.SetDepthImage(dm); err != nil {
		return errors.Wrap(err, depthFile)
	}
	return r.Update()
}

// withSession runs fn with a session that is closed afterwards.
func withSession(c *cli.Context, fn func(s *session) error) (err error) {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.close())
	}()
	return fn(s)
}
