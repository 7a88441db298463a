// Package config loads go-ecat settings from a YAML file, ECAT_ environment
// variables and command-line flags, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	ecat "github.com/anatolykoptev/go-ecat"
)

// EnvPrefix is prepended to every environment override, e.g.
// ECAT_MATCHING_THRESHOLD.
const EnvPrefix = "ECAT"

// Web threshold bounds, matching the slider of the upload form.
const (
	MinWebThreshold = 0.50
	MaxWebThreshold = 0.95
)

// Config is the full application configuration.
type Config struct {
	Matching MatchingConfig `mapstructure:"matching"`
	Color    ColorConfig    `mapstructure:"color"`
	Geo      GeoConfig      `mapstructure:"geo"`
	Download DownloadConfig `mapstructure:"download"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type MatchingConfig struct {
	Threshold     float64 `mapstructure:"threshold"`
	PatchSize     int     `mapstructure:"patch_size"`
	Interpolation string  `mapstructure:"interpolation"`
}

// ColorConfig mirrors ecat.ColorThresholds on the 8-bit HSV scale.
type ColorConfig struct {
	SaturationMax float64 `mapstructure:"saturation_max"`
	WhiteValueMin float64 `mapstructure:"white_value_min"`
	BlackValueMax float64 `mapstructure:"black_value_max"`
	HueMin        float64 `mapstructure:"hue_min"`
	HueMax        float64 `mapstructure:"hue_max"`
}

type GeoConfig struct {
	MissingMetadata string `mapstructure:"missing_metadata"`
}

type DownloadConfig struct {
	MaxMB     int64         `mapstructure:"max_mb"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	def := ecat.DefaultColorThresholds()

	v.SetDefault("matching.threshold", ecat.DefaultThreshold)
	v.SetDefault("matching.patch_size", ecat.DefaultPatchSize)
	v.SetDefault("matching.interpolation", string(ecat.InterpolationBiLinear))

	v.SetDefault("color.saturation_max", def.SaturationMax)
	v.SetDefault("color.white_value_min", def.WhiteValueMin)
	v.SetDefault("color.black_value_max", def.BlackValueMax)
	v.SetDefault("color.hue_min", def.HueMin)
	v.SetDefault("color.hue_max", def.HueMax)

	v.SetDefault("geo.missing_metadata", string(ecat.PassThrough))

	v.SetDefault("download.max_mb", 20)
	v.SetDefault("download.timeout", 30*time.Second)
	v.SetDefault("download.user_agent", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 64)
	v.SetDefault("server.read_timeout", time.Minute)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// New prepares v to read cfgFile (or ecat.yaml from the working directory
// and $HOME/.config/ecat) plus ECAT_ environment variables. A missing
// default config file is not an error.
func New(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("ecat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ecat"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	if c.Matching.Threshold < 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("matching.threshold %v outside [0, 1]", c.Matching.Threshold)
	}
	if c.Matching.PatchSize < 7 {
		return fmt.Errorf("matching.patch_size %d smaller than the 7px SSIM window", c.Matching.PatchSize)
	}
	if _, err := ecat.ParseInterpolation(c.Matching.Interpolation); err != nil {
		return fmt.Errorf("matching.interpolation: %w", err)
	}
	if _, err := ecat.ParseMissingMetadataPolicy(c.Geo.MissingMetadata); err != nil {
		return fmt.Errorf("geo.missing_metadata: %w", err)
	}
	if c.Color.HueMin > c.Color.HueMax {
		return fmt.Errorf("color.hue_min %v above color.hue_max %v", c.Color.HueMin, c.Color.HueMax)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	return nil
}

// Pipeline builds the core configuration. Validate must have passed.
func (c *Config) Pipeline() ecat.Config {
	interp, _ := ecat.ParseInterpolation(c.Matching.Interpolation)
	missing, _ := ecat.ParseMissingMetadataPolicy(c.Geo.MissingMetadata)
	return ecat.Config{
		PatchSize:     c.Matching.PatchSize,
		Interpolation: interp,
		Color: ecat.ColorThresholds{
			SaturationMax: c.Color.SaturationMax,
			WhiteValueMin: c.Color.WhiteValueMin,
			BlackValueMax: c.Color.BlackValueMax,
			HueMin:        c.Color.HueMin,
			HueMax:        c.Color.HueMax,
		},
		MissingMeta: missing,
		UserAgent:   c.Download.UserAgent,
	}
}

// DownloadOpts converts the download section for ecat.URLSource.
func (c *Config) DownloadOpts() ecat.DownloadOpts {
	return ecat.DownloadOpts{MaxBytes: c.Download.MaxMB << 20, Timeout: c.Download.Timeout}
}

// MaxUploadBytes is the request body cap of the web form.
func (c *ServerConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
