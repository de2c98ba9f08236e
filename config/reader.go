package config

import (
	"bytes"
	"io"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Read reads a config file, expanding environment variables, on top of Default.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
// Unknown keys are rejected.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.ConfigFilePath = originalPath

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "failed to decode Config from yaml")
	}
	if err := cfg.Ensure(); err != nil {
		return nil, errors.Wrapf(err, "failed to process Config")
	}
	return cfg, nil
}

// ApplyOverrides sets reconstruction values from "key=value" pairs, with keys named as in the
// reconstruction block of the file, e.g. "stride=2" or "mirror=true". Values are converted to
// the field type. The config is validated again afterwards.
func (c *Config) ApplyOverrides(overrides []string) error {
	if len(overrides) == 0 {
		return nil
	}
	attributes := make(map[string]interface{}, len(overrides))
	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return errors.Errorf("override %q is not of the form key=value", o)
		}
		attributes[key] = strings.TrimSpace(value)
	}

	// decode into a copy so a bad override leaves c untouched
	recon := c.Reconstruction
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &recon,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(attributes); err != nil {
		return errors.Wrap(err, "invalid override")
	}

	recon = recon.Normalized()
	if err := recon.Validate(); err != nil {
		return errors.Wrap(err, "invalid override")
	}
	c.Reconstruction = recon
	return nil
}
