// Package vsource keeps the per-channel video source configuration and builds
// the frame pipeline each capture thread publishes into.
package vsource

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/pipeline"
)

const (
	MaxChannels = 8
	PoolSize    = pipeline.DefaultCapacity
)

var (
	ErrInvalidConfig   = errors.New("vsource: invalid configuration")
	ErrTooManyChannels = errors.New("vsource: too many channels")
)

// Config is the static description of one channel. ID is assigned by Setup.
// Audio channels fill SampleRate, Channels and Samples instead of the
// picture geometry.
type Config struct {
	RTPID  int
	Width  int
	Height int
	Stride int
	ID     int

	SampleRate int
	Channels   int
	Samples    int
}

type (
	Pipeline = pipeline.Pipeline[*Frame, Config]
	Registry = pipeline.Registry[*Frame, Config]
	Slot     = pipeline.Slot[*Frame]
	Client   = pipeline.Client[*Frame, Config]
)

func NewRegistry() *Registry {
	return pipeline.NewRegistry[*Frame, Config]()
}

// Source is the read-only channel table produced by Setup.
type Source struct {
	configs []Config
	pipes   []*Pipeline
}

// Setup builds, initializes and registers one pipeline per config, named by
// applying pipeFormat to the channel index. It stops at the first failure and
// leaves earlier channels registered.
func Setup(reg *Registry, pipeFormat string, configs []Config) (s *Source, err error) {
	if len(configs) == 0 {
		err = errors.Wrap(ErrInvalidConfig, "no channels")
		return
	}
	if len(configs) > MaxChannels {
		err = errors.Wrapf(ErrTooManyChannels, "%d > %d", len(configs), MaxChannels)
		return
	}

	s = &Source{}
	for idx := range configs {
		cfg := configs[idx]
		cfg.ID = idx

		var pipe *Pipeline
		if pipe, err = newVideoPipe(fmt.Sprintf(pipeFormat, idx), cfg); err != nil {
			return nil, err
		}
		if err = reg.Register(pipe); err != nil {
			return nil, errors.Wrap(err, "vsource: register pipeline")
		}

		logrus.WithFields(logrus.Fields{
			"function": "Setup",
			"pipe":     pipe.Name(),
			"width":    cfg.Width,
			"height":   cfg.Height,
			"stride":   cfg.Stride,
		}).Info("Video source channel ready")

		s.configs = append(s.configs, cfg)
		s.pipes = append(s.pipes, pipe)
	}
	return
}

// SetupOne is Setup for a single channel.
func SetupOne(reg *Registry, pipeFormat string, rtpID, width, height, stride int) (*Source, error) {
	return Setup(reg, pipeFormat, []Config{{
		RTPID:  rtpID,
		Width:  width,
		Height: height,
		Stride: stride,
	}})
}

func newVideoPipe(name string, cfg Config) (pipe *Pipeline, err error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Stride < cfg.Width*BytesPerPixel {
		err = errors.Wrapf(ErrInvalidConfig, "channel %d: %dx%d stride %d", cfg.ID, cfg.Width, cfg.Height, cfg.Stride)
		return
	}
	pipe = pipeline.New[*Frame, Config](name)
	pipe.SetPrivate(cfg)
	if _, err = pipe.InitPool(PoolSize, func(int) (*Frame, error) {
		return NewFrame(cfg.Width, cfg.Height, cfg.Stride)
	}); err != nil {
		return nil, errors.Wrapf(err, "vsource: channel %d", cfg.ID)
	}
	return
}

// SetupAudio registers the pipeline an audio producer publishes PCM into.
func SetupAudio(reg *Registry, name string, cfg Config) (pipe *Pipeline, err error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.Samples <= 0 {
		err = errors.Wrapf(ErrInvalidConfig, "audio %d Hz %d ch %d samples", cfg.SampleRate, cfg.Channels, cfg.Samples)
		return
	}
	pipe = pipeline.New[*Frame, Config](name)
	pipe.SetPrivate(cfg)
	if _, err = pipe.InitPool(PoolSize, func(int) (*Frame, error) {
		return NewAudioFrame(cfg.Samples, cfg.Channels)
	}); err != nil {
		return nil, errors.Wrap(err, "vsource: audio")
	}
	if err = reg.Register(pipe); err != nil {
		return nil, errors.Wrap(err, "vsource: register audio pipeline")
	}
	return
}

func (s *Source) Channels() int {
	return len(s.configs)
}

func (s *Source) Config(ch int) Config {
	return s.configs[ch]
}

func (s *Source) Width(ch int) int {
	return s.configs[ch].Width
}

func (s *Source) Height(ch int) int {
	return s.configs[ch].Height
}

func (s *Source) Stride(ch int) int {
	return s.configs[ch].Stride
}

func (s *Source) PipeName(ch int) string {
	return s.pipes[ch].Name()
}

func (s *Source) Pipe(ch int) *Pipeline {
	return s.pipes[ch]
}
