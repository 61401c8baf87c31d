package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/render"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// CONFIG — Application settings
// ============================================================================
// Defaults come from Default(); a YAML file overrides any subset of them and
// command-line flags override the file.
// ============================================================================

// Config is the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Export  ExportConfig  `yaml:"export"`
	Schema  SchemaConfig  `yaml:"schema"`
	Visuals VisualsConfig `yaml:"visuals"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type ExportConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Scale  float64 `yaml:"scale"`
	// DisableRaster forces image export through the document fallbacks.
	DisableRaster bool `yaml:"disable_raster"`
}

type SchemaConfig struct {
	DetectTemporal   bool    `yaml:"detect_temporal"`
	NumericThreshold float64 `yaml:"numeric_threshold"`
}

type VisualsConfig struct {
	AutoRepair     bool   `yaml:"auto_repair"`
	DefaultPalette string `yaml:"default_palette"`
	GridColumns    int    `yaml:"grid_columns"`
}

type ArchiveConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" or "postgres"; empty disables the archive
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the built-in configuration.
func Default() Config {
	opts := render.DefaultOptions()
	return Config{
		Server: ServerConfig{Addr: ":8080", MaxUploadBytes: 32 << 20},
		Export: ExportConfig{Width: opts.Width, Height: opts.Height, Scale: opts.Scale},
		Schema: SchemaConfig{NumericThreshold: dataset.DefaultInferOptions().NumericThreshold},
		Visuals: VisualsConfig{
			DefaultPalette: visual.DefaultPalette,
			GridColumns:    visual.DefaultGridColumns,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "parse config")
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case c.Server.MaxUploadBytes <= 0:
		return errors.New("server.max_upload_bytes must be positive")
	case c.Export.Width <= 0 || c.Export.Height <= 0:
		return errors.New("export.width and export.height must be positive")
	case c.Export.Scale <= 0:
		return errors.New("export.scale must be positive")
	case c.Schema.NumericThreshold <= 0 || c.Schema.NumericThreshold > 1:
		return errors.New("schema.numeric_threshold must be in (0, 1]")
	case c.Visuals.GridColumns <= 0:
		return errors.New("visuals.grid_columns must be positive")
	}
	switch c.Archive.Driver {
	case "", "sqlite3", "postgres":
	default:
		return errors.Newf("archive.driver %q is not sqlite3 or postgres", c.Archive.Driver)
	}
	if c.Archive.Driver != "" && c.Archive.DSN == "" {
		return errors.New("archive.dsn is required when archive.driver is set")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Newf("log.format %q is not text or json", c.Log.Format)
	}
	return nil
}

// RenderOptions returns the raster export size.
func (c Config) RenderOptions() render.Options {
	return render.Options{Width: c.Export.Width, Height: c.Export.Height, Scale: c.Export.Scale}
}

// LoadOptions returns the dataset parsing options.
func (c Config) LoadOptions() dataset.LoadOptions {
	opt := dataset.DefaultLoadOptions()
	opt.Infer.DetectTemporal = c.Schema.DetectTemporal
	opt.Infer.NumericThreshold = c.Schema.NumericThreshold
	return opt
}

// StoreOptions returns the visual store options.
func (c Config) StoreOptions() []visual.StoreOption {
	return []visual.StoreOption{
		visual.WithAutoRepair(c.Visuals.AutoRepair),
		visual.WithDefaultPalette(c.Visuals.DefaultPalette),
		visual.WithGridColumns(c.Visuals.GridColumns),
	}
}

// Logger builds the root logger.
func (c LogConfig) Logger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.Level); err == nil {
		log.SetLevel(lvl)
	}
	if strings.EqualFold(c.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
