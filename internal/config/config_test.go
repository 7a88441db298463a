package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ecat "github.com/anatolykoptev/go-ecat"
)

func load(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	path := ""
	if yaml != "" {
		path = filepath.Join(t.TempDir(), "ecat.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	} else {
		// point at an empty directory so no stray ecat.yaml is picked up
		t.Chdir(t.TempDir())
	}
	require.NoError(t, New(v, path))
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.InDelta(t, ecat.DefaultThreshold, cfg.Matching.Threshold, 1e-9)
	assert.Equal(t, ecat.DefaultPatchSize, cfg.Matching.PatchSize)
	assert.Equal(t, "bilinear", cfg.Matching.Interpolation)
	assert.Equal(t, "pass", cfg.Geo.MissingMetadata)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(64<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, 30*time.Second, cfg.Download.Timeout)

	p := cfg.Pipeline()
	assert.Equal(t, ecat.DefaultColorThresholds(), p.Color)
	assert.Equal(t, ecat.PassThrough, p.MissingMeta)
	assert.Equal(t, ecat.InterpolationBiLinear, p.Interpolation)
}

func TestLoad_File(t *testing.T) {
	cfg, err := load(t, `
matching:
  threshold: 0.9
  patch_size: 64
  interpolation: catmull-rom
geo:
  missing_metadata: reject
color:
  hue_max: 30
download:
  max_mb: 5
`)
	require.NoError(t, err)

	p := cfg.Pipeline()
	assert.InDelta(t, 0.9, cfg.Matching.Threshold, 1e-9)
	assert.Equal(t, 64, p.PatchSize)
	assert.Equal(t, ecat.InterpolationCatmullRom, p.Interpolation)
	assert.Equal(t, ecat.Reject, p.MissingMeta)
	assert.InDelta(t, 30.0, p.Color.HueMax, 1e-9)
	assert.InDelta(t, 5.0, p.Color.HueMin, 1e-9, "unset keys keep defaults")
	assert.Equal(t, int64(5<<20), cfg.DownloadOpts().MaxBytes)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ECAT_MATCHING_THRESHOLD", "0.6")
	t.Setenv("ECAT_SERVER_ADDR", ":9090")

	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, cfg.Matching.Threshold, 1e-9)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"threshold above one", "matching:\n  threshold: 1.5\n"},
		{"patch smaller than window", "matching:\n  patch_size: 5\n"},
		{"unknown interpolation", "matching:\n  interpolation: lanczos\n"},
		{"unknown policy", "geo:\n  missing_metadata: maybe\n"},
		{"inverted hue band", "color:\n  hue_min: 30\n  hue_max: 10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.yaml)
			assert.Error(t, err)
		})
	}
}

func TestNew_MissingExplicitFile(t *testing.T) {
	v := viper.New()
	err := New(v, filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoggingConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LoggingConfig{Level: "debug", Format: "json"}.Logger(&buf)
	require.NoError(t, err)

	logger.Debug("ecat: probe", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"ecat: probe"`)

	_, err = LoggingConfig{Level: "loud"}.Logger(&buf)
	assert.Error(t, err)
	_, err = LoggingConfig{Format: "xml"}.Logger(&buf)
	assert.Error(t, err)
}
