// Package cli contains all business logic needed by the rgbdmesh command.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	flagConfig  = "config"
	flagDebug   = "debug"
	flagLogFile = "log-file"
	flagSet     = "set"

	// Command flags.
	flagCalibration = "calibration"
	flagDepth       = "depth"
	flagColor       = "color"
	flagOut         = "out"
	flagFrames      = "frames"
	flagOutDir      = "out-dir"
	flagMaxFrames   = "max-frames"
)

var calibrationFlag = &cli.PathFlag{
	Name:    flagCalibration,
	Aliases: []string{"calib"},
	Usage:   "calibration `DIR`, defaults to calibration_dir of the config file",
}

var depthFlag = &cli.PathFlag{
	Name:     flagDepth,
	Required: true,
	Usage:    "16-bit depth frame (png or tiff)",
}

var colorFlag = &cli.PathFlag{
	Name:  flagColor,
	Usage: "color frame used for texture coordinates",
}

var app = &cli.App{
	Name:            "rgbdmesh",
	Usage:           "reconstruct textured triangle meshes from depth and color frames",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.PathFlag{
			Name:  flagLogFile,
			Usage: "also write logs to a rotating `FILE`",
		},
		&cli.StringSliceFlag{
			Name:  flagSet,
			Usage: "override a reconstruction setting, e.g. --set stride=2 --set mirror=true",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "reconstruct",
			Usage:     "build a mesh from one depth frame and write it as PLY",
			UsageText: "rgbdmesh reconstruct --depth <file> --out <file.ply> [other options]",
			Flags: []cli.Flag{
				calibrationFlag,
				depthFlag,
				colorFlag,
				&cli.PathFlag{
					Name:     flagOut,
					Required: true,
					Usage:    "output PLY `FILE`",
				},
			},
			Action: ReconstructAction,
		},
		{
			Name:      "stats",
			Usage:     "build a mesh from one depth frame and print statistics about it",
			UsageText: "rgbdmesh stats --depth <file> [other options]",
			Flags: []cli.Flag{
				calibrationFlag,
				depthFlag,
				colorFlag,
			},
			Action: StatsAction,
		},
		{
			Name:      "undistort",
			Usage:     "remove lens distortion from a depth frame",
			UsageText: "rgbdmesh undistort --depth <file> --out <file.png> [other options]",
			Flags: []cli.Flag{
				calibrationFlag,
				depthFlag,
				&cli.PathFlag{
					Name:     flagOut,
					Required: true,
					Usage:    "output 16-bit png `FILE`",
				},
			},
			Action: UndistortAction,
		},
		{
			Name:      "watch",
			Usage:     "build a mesh for every depth frame that appears in a directory",
			UsageText: "rgbdmesh watch --frames <dir> --out-dir <dir> [other options]",
			Flags: []cli.Flag{
				calibrationFlag,
				colorFlag,
				&cli.PathFlag{
					Name:     flagFrames,
					Required: true,
					Usage:    "directory to watch for depth frames",
				},
				&cli.PathFlag{
					Name:     flagOutDir,
					Required: true,
					Usage:    "directory to write PLY files to",
				},
				&cli.IntFlag{
					Name:  flagMaxFrames,
					Usage: "stop after this many frames, 0 runs until interrupted",
				},
			},
			Action: WatchAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
