package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	vc := cfg.VideoConfigs()
	require.Len(t, vc, 1)
	assert.Equal(t, 640, vc[0].Width)
	assert.Equal(t, 2560, vc[0].Stride)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gastream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
rtsp:
  listen: "127.0.0.1:9554"
  object: /live
video:
  fps: 25
  channels:
    - {width: 320, height: 240}
    - {width: 160, height: 120, stride: 1024}
audio:
  enabled: true
  sample_rate: 48000
  channels: 1
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/live", cfg.RTSP.Object)
	assert.Equal(t, "gastream", cfg.RTSP.Title)
	assert.Equal(t, 25, cfg.Video.FPS)
	assert.Equal(t, "raw", cfg.Video.Codec)

	vc := cfg.VideoConfigs()
	require.Len(t, vc, 2)
	assert.Equal(t, 1280, vc[0].Stride)
	assert.Equal(t, 1024, vc[1].Stride)
	assert.Equal(t, 1, vc[1].RTPID)

	ac := cfg.AudioConfig()
	assert.Equal(t, 2, ac.RTPID)
	assert.Equal(t, 48000, ac.SampleRate)
	assert.Equal(t, 882, ac.Samples)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(c *Config){
		"level":       func(c *Config) { c.Log.Level = "loud" },
		"object":      func(c *Config) { c.RTSP.Object = "desktop" },
		"root object": func(c *Config) { c.RTSP.Object = "/" },
		"buffer":      func(c *Config) { c.RTSP.ReadBufferSize = 10 },
		"no channels": func(c *Config) { c.Video.Channels = nil },
		"too many":    func(c *Config) { c.Video.Channels = make([]ChannelConfig, 9) },
		"size":        func(c *Config) { c.Video.Channels[0].Width = 0 },
		"stride":      func(c *Config) { c.Video.Channels[0].Stride = 100 },
		"fps":         func(c *Config) { c.Video.FPS = 0 },
		"codec":       func(c *Config) { c.Video.Codec = "h264" },
		"raw no yuv":  func(c *Config) { c.Filter.Enabled = false },
		"pipe format": func(c *Config) { c.Video.PipeFormat = "video" },
		"audio codec": func(c *Config) { c.Audio.Enabled = true; c.Audio.Codec = "opus" },
		"audio rate":  func(c *Config) { c.Audio.Enabled = true; c.Audio.SampleRate = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Equal(t, ErrInvalid, errors.Cause(cfg.Validate()))
		})
	}
}

func TestParseError(t *testing.T) {
	_, err := Parse([]byte("video: [unclosed"))
	assert.Error(t, err)
	assert.NotEqual(t, ErrInvalid, errors.Cause(err))
}
