package rimage

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	// register ppm.
	_ "github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"golang.org/x/image/tiff"
)

// ReadDepthMapFromFile reads a 16-bit depth frame stored as a PNG or TIFF file.
func ReadDepthMapFromFile(fn string) (*DepthMap, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening depth file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(fn)); ext {
	case ".png":
		img, err = png.Decode(f)
	case ".tif", ".tiff":
		img, err = tiff.Decode(f)
	default:
		return nil, errors.Errorf("do not know how to read depth from %q files", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding depth file %s", fn)
	}
	return ConvertImageToDepthMap(img)
}

// WriteDepthMapToFile writes the depth map as a 16-bit grayscale PNG.
func WriteDepthMapToFile(fn string, dm *DepthMap) error {
	if dm == nil {
		return errors.New("input DepthMap is nil")
	}
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	if err := png.Encode(f, dm.ToGray16Picture()); err != nil {
		return err
	}
	return f.Sync()
}

// ReadImageFromFile reads a colour frame. PNG, JPEG, BMP, TIFF, GIF and PPM are understood.
func ReadImageFromFile(fn string) (image.Image, error) {
	img, err := imaging.Open(fn, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading image %s", fn)
	}
	return img, nil
}
