// Package config loads the pa-report configuration from defaults, .env files,
// an optional YAML config file, PA_REPORT_* environment variables and command
// flags (in increasing order of precedence).
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ironsheep/pa-report/internal/errors"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// PA_REPORT_MATCH_THRESHOLD_MM=0.01.
const EnvPrefix = "PA_REPORT"

// DefaultConfigName is the config file searched for in the working directory.
const DefaultConfigName = "pa-report"

// Config is the explicit configuration handed to every pipeline stage.
type Config struct {
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
	RunIndex int    `mapstructure:"run_index" yaml:"run_index"`

	Match      MatchConfig     `mapstructure:"match" yaml:"match"`
	Frame      FrameConfig     `mapstructure:"frame" yaml:"frame"`
	Fields     FieldsConfig    `mapstructure:"fields" yaml:"fields"`
	Thumbnails ThumbnailConfig `mapstructure:"thumbnails" yaml:"thumbnails"`
	Report     ReportConfig    `mapstructure:"report" yaml:"report"`
	Sample     SampleConfig    `mapstructure:"sample" yaml:"sample"`
	Log        LogConfig       `mapstructure:"log" yaml:"log"`

	// ConfigFile is the config file actually read, empty if none.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// MatchConfig controls the EDAX/ImageJ particle pairing.
type MatchConfig struct {
	ThresholdMM float64 `mapstructure:"threshold_mm" yaml:"threshold_mm"`
	Strategy    string  `mapstructure:"strategy" yaml:"strategy"` // first or mutual
}

// FrameConfig describes the ImageJ sensor frame.
type FrameConfig struct {
	Width       int     `mapstructure:"width" yaml:"width"`
	Height      int     `mapstructure:"height" yaml:"height"`
	YOffsetPx   int     `mapstructure:"y_offset_px" yaml:"y_offset_px"`
	PixelSizeUM float64 `mapstructure:"pixel_size_um" yaml:"pixel_size_um"`
}

// FieldsConfig locates the field images inside a run directory.
type FieldsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	Ext string `mapstructure:"ext" yaml:"ext"`
}

// ThumbnailConfig controls thumbnail extraction.
type ThumbnailConfig struct {
	Dir            string `mapstructure:"dir" yaml:"dir"`
	Ext            string `mapstructure:"ext" yaml:"ext"`
	Scale          int    `mapstructure:"scale" yaml:"scale"`
	Source         string `mapstructure:"source" yaml:"source"` // edax or imagej
	ImageJWidth    int    `mapstructure:"imagej_width" yaml:"imagej_width"`
	ImageJHeight   int    `mapstructure:"imagej_height" yaml:"imagej_height"`
	AnnotateFields bool   `mapstructure:"annotate_fields" yaml:"annotate_fields"`
	Skip           bool   `mapstructure:"skip" yaml:"skip"`
}

// ReportConfig controls the HTML report.
type ReportConfig struct {
	Output            string `mapstructure:"output" yaml:"output"`
	Title             string `mapstructure:"title" yaml:"title"`
	CompositionColumn string `mapstructure:"composition_column" yaml:"composition_column"`
	OCRDataBar        bool   `mapstructure:"ocr_databar" yaml:"ocr_databar"`
	DataBarHeight     int    `mapstructure:"databar_height" yaml:"databar_height"`
}

// SampleConfig carries the sample description that the instrument does not record.
type SampleConfig struct {
	ID      string `mapstructure:"id" yaml:"id"`
	CRM     string `mapstructure:"crm" yaml:"crm"`
	Remarks string `mapstructure:"remarks" yaml:"remarks"`
	UAmount string `mapstructure:"u_amount" yaml:"u_amount"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".")
	v.SetDefault("run_index", 0)

	v.SetDefault("match.threshold_mm", 0.005)
	v.SetDefault("match.strategy", "first")

	v.SetDefault("frame.width", 2048)
	v.SetDefault("frame.height", 1600)
	v.SetDefault("frame.y_offset_px", 160)
	v.SetDefault("frame.pixel_size_um", 0.23142628587258555)

	v.SetDefault("fields.dir", "fields")
	v.SetDefault("fields.ext", ".png")

	v.SetDefault("thumbnails.dir", "cropped")
	v.SetDefault("thumbnails.ext", ".png")
	v.SetDefault("thumbnails.scale", 3)
	v.SetDefault("thumbnails.source", "edax")
	v.SetDefault("thumbnails.imagej_width", 32)
	v.SetDefault("thumbnails.imagej_height", 25)
	v.SetDefault("thumbnails.annotate_fields", false)
	v.SetDefault("thumbnails.skip", false)

	v.SetDefault("report.output", "")
	v.SetDefault("report.title", "Particle Search Results")
	v.SetDefault("report.composition_column", "UM")
	v.SetDefault("report.ocr_databar", false)
	v.SetDefault("report.databar_height", 64)

	v.SetDefault("sample.id", "")
	v.SetDefault("sample.crm", "")
	v.SetDefault("sample.remarks", "")
	v.SetDefault("sample.u_amount", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
}

// NewViper returns a viper instance with defaults and environment binding set up.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration into a Config. configFile may be empty, in which
// case ./pa-report.yaml is used when present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	loadEnvFiles()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(DefaultConfigName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return Decode(v)
}

// Decode unmarshals v into a validated Config.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Decode(v)
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

func (c *Config) normalize() {
	c.Match.Strategy = strings.ToLower(strings.TrimSpace(c.Match.Strategy))
	c.Thumbnails.Source = strings.ToLower(strings.TrimSpace(c.Thumbnails.Source))
	c.Fields.Ext = dotted(c.Fields.Ext)
	c.Thumbnails.Ext = dotted(c.Thumbnails.Ext)
}

func dotted(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.Match.ThresholdMM <= 0:
		return errors.NewValidationError("match.threshold_mm", c.Match.ThresholdMM, "must be positive")
	case c.Match.Strategy != "first" && c.Match.Strategy != "mutual":
		return errors.NewValidationError("match.strategy", c.Match.Strategy, "must be first or mutual")
	case c.Frame.Width <= 0 || c.Frame.Height <= 0:
		return errors.NewValidationError("frame", fmt.Sprintf("%dx%d", c.Frame.Width, c.Frame.Height), "dimensions must be positive")
	case c.Frame.PixelSizeUM <= 0:
		return errors.NewValidationError("frame.pixel_size_um", c.Frame.PixelSizeUM, "must be positive")
	case c.Thumbnails.Scale < 1:
		return errors.NewValidationError("thumbnails.scale", c.Thumbnails.Scale, "must be at least 1")
	case c.Thumbnails.Source != "edax" && c.Thumbnails.Source != "imagej":
		return errors.NewValidationError("thumbnails.source", c.Thumbnails.Source, "must be edax or imagej")
	case c.Thumbnails.ImageJWidth <= 0 || c.Thumbnails.ImageJHeight <= 0:
		return errors.NewValidationError("thumbnails.imagej_width", c.Thumbnails.ImageJWidth, "ImageJ crop size must be positive")
	case c.RunIndex < 0:
		return errors.NewValidationError("run_index", c.RunIndex, "must not be negative")
	case c.Report.CompositionColumn == "":
		return errors.NewValidationError("report.composition_column", "", "must not be empty")
	}
	return nil
}

// loadEnvFiles loads .env then .env.local; missing files are ignored.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}
