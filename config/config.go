// Package config loads the server configuration from YAML.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nareix/gastream/encoder"
	"github.com/nareix/gastream/utils"
	"github.com/nareix/gastream/vsource"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Log    LogConfig    `yaml:"log"`
	RTSP   RTSPConfig   `yaml:"rtsp"`
	Video  VideoConfig  `yaml:"video"`
	Filter FilterConfig `yaml:"filter"`
	Audio  AudioConfig  `yaml:"audio"`
	API    APIConfig    `yaml:"api"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type RTSPConfig struct {
	Listen         string `yaml:"listen"`
	Object         string `yaml:"object"`
	Title          string `yaml:"title"`
	ReadBufferSize int    `yaml:"read_buffer_size"`
}

type ChannelConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// bytes per row of the captured RGBA picture; 0 means width*4
	Stride int `yaml:"stride"`
}

type VideoConfig struct {
	Codec      string          `yaml:"codec"`
	FPS        int             `yaml:"fps"`
	Bitrate    int             `yaml:"bitrate"`
	PipeFormat string          `yaml:"pipe_format"`
	Channels   []ChannelConfig `yaml:"channels"`
}

type FilterConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PipeFormat string `yaml:"pipe_format"`
}

type AudioConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Codec           string `yaml:"codec"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	SamplesPerFrame int    `yaml:"samples_per_frame"`
	PipeFormat      string `yaml:"pipe_format"`
}

type APIConfig struct {
	// empty disables the status API
	Listen string `yaml:"listen"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		RTSP: RTSPConfig{
			Listen:         ":8554",
			Object:         "/desktop",
			Title:          "gastream",
			ReadBufferSize: 64 * 1024,
		},
		Video: VideoConfig{
			Codec:      "raw",
			FPS:        30,
			Bitrate:    3000000,
			PipeFormat: "video-%d",
			Channels:   []ChannelConfig{{Width: 640, Height: 480, Stride: 640 * 4}},
		},
		Filter: FilterConfig{
			Enabled:    true,
			PipeFormat: "filter-%d",
		},
		Audio: AudioConfig{
			Codec:           "L16",
			SampleRate:      44100,
			Channels:        2,
			SamplesPerFrame: 882,
			PipeFormat:      "audio-%d",
		},
		API: APIConfig{Listen: ":8080"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (cfg *Config, err error) {
	var data []byte
	if data, err = os.ReadFile(path); err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	return Parse(data)
}

func Parse(data []byte) (cfg *Config, err error) {
	cfg = Default()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// Validate fills derived defaults and checks every field.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level %q", c.Log.Level)
	}
	if !strings.HasPrefix(c.RTSP.Object, "/") || len(c.RTSP.Object) < 2 {
		return invalid("rtsp.object %q must start with / and name something", c.RTSP.Object)
	}
	if c.RTSP.ReadBufferSize < 1024 {
		return invalid("rtsp.read_buffer_size %d below 1024", c.RTSP.ReadBufferSize)
	}

	if n := len(c.Video.Channels); n < 1 || n > vsource.MaxChannels {
		return invalid("video.channels: %d not in 1..%d", n, vsource.MaxChannels)
	}
	for i := range c.Video.Channels {
		ch := &c.Video.Channels[i]
		if ch.Width <= 0 || ch.Height <= 0 {
			return invalid("video.channels[%d]: size %dx%d", i, ch.Width, ch.Height)
		}
		if ch.Stride == 0 {
			ch.Stride = ch.Width * 4
		}
		if ch.Stride < ch.Width*4 {
			return invalid("video.channels[%d]: stride %d below %d", i, ch.Stride, ch.Width*4)
		}
	}
	if c.Video.FPS <= 0 || c.Video.FPS > 240 {
		return invalid("video.fps %d", c.Video.FPS)
	}
	if !utils.StringInSlice(c.Video.Codec, encoder.VideoCodecs()) {
		return invalid("video.codec %q not in %v", c.Video.Codec, encoder.VideoCodecs())
	}
	if c.Video.Codec == "raw" && !c.Filter.Enabled {
		return invalid("video.codec raw needs filter.enabled for YUV input")
	}
	if !strings.Contains(c.Video.PipeFormat, "%d") {
		return invalid("video.pipe_format %q lacks %%d", c.Video.PipeFormat)
	}
	if c.Filter.Enabled && !strings.Contains(c.Filter.PipeFormat, "%d") {
		return invalid("filter.pipe_format %q lacks %%d", c.Filter.PipeFormat)
	}

	if c.Audio.Enabled {
		a := c.Audio
		if !utils.StringInSlice(a.Codec, encoder.AudioCodecs()) {
			return invalid("audio.codec %q not in %v", a.Codec, encoder.AudioCodecs())
		}
		if a.SampleRate <= 0 || a.Channels <= 0 || a.SamplesPerFrame <= 0 {
			return invalid("audio: %d Hz %d ch %d samples", a.SampleRate, a.Channels, a.SamplesPerFrame)
		}
		if !strings.Contains(a.PipeFormat, "%d") {
			return invalid("audio.pipe_format %q lacks %%d", a.PipeFormat)
		}
	}
	return nil
}

func (c *Config) VideoConfigs() []vsource.Config {
	out := make([]vsource.Config, len(c.Video.Channels))
	for i, ch := range c.Video.Channels {
		out[i] = vsource.Config{
			RTPID:  i,
			Width:  ch.Width,
			Height: ch.Height,
			Stride: ch.Stride,
		}
	}
	return out
}

func (c *Config) AudioConfig() vsource.Config {
	return vsource.Config{
		RTPID:      len(c.Video.Channels),
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		Samples:    c.Audio.SamplesPerFrame,
	}
}
