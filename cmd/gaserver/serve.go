package main

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/api"
	"github.com/nareix/gastream/config"
	"github.com/nareix/gastream/filter"
	"github.com/nareix/gastream/format/rtsp"
	"github.com/nareix/gastream/testsrc"
	"github.com/nareix/gastream/vsource"
)

type serveOpts struct {
	configPath  string
	logLevel    string
	pixelFormat string
	toneFreq    float64
}

func loadConfig(o *serveOpts) (cfg *config.Config, err error) {
	if o.configPath != "" {
		if cfg, err = config.Load(o.configPath); err != nil {
			return
		}
	} else {
		cfg = config.Default()
		if err = cfg.Validate(); err != nil {
			return
		}
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	var lvl logrus.Level
	if lvl, err = logrus.ParseLevel(cfg.Log.Level); err != nil {
		return nil, errors.Wrap(config.ErrInvalid, err.Error())
	}
	logrus.SetLevel(lvl)
	return
}

// media is everything between the capture stand-in and the RTSP server.
type media struct {
	reg    *vsource.Registry
	src    *vsource.Source
	stage  *filter.Stage
	video  []rtsp.Channel
	audio  *rtsp.Channel
	apipe  *vsource.Pipeline
	filter []string
}

func setupMedia(cfg *config.Config) (m *media, err error) {
	m = &media{reg: vsource.NewRegistry()}
	if m.src, err = vsource.Setup(m.reg, cfg.Video.PipeFormat, cfg.VideoConfigs()); err != nil {
		return
	}
	if cfg.Filter.Enabled {
		m.stage = filter.NewStage(m.reg)
	}
	for ch := 0; ch < m.src.Channels(); ch++ {
		pipe := m.src.PipeName(ch)
		if m.stage != nil {
			dst := fmt.Sprintf(cfg.Filter.PipeFormat, ch)
			if err = m.stage.Init(pipe, dst); err != nil {
				return
			}
			m.filter = append(m.filter, dst)
			pipe = dst
		}
		m.video = append(m.video, rtsp.Channel{Pipe: pipe, Config: m.src.Config(ch)})
	}
	if cfg.Audio.Enabled {
		name := fmt.Sprintf(cfg.Audio.PipeFormat, 0)
		acfg := cfg.AudioConfig()
		if m.apipe, err = vsource.SetupAudio(m.reg, name, acfg); err != nil {
			return
		}
		m.audio = &rtsp.Channel{Pipe: name, Config: acfg}
	}
	return
}

func newRtspServer(cfg *config.Config, m *media) *rtsp.Server {
	s := rtsp.NewServer()
	s.Object = cfg.RTSP.Object
	s.Title = cfg.RTSP.Title
	s.ReadBufferSize = cfg.RTSP.ReadBufferSize
	s.Registry = m.reg
	s.Video = m.video
	s.Audio = m.audio
	s.VideoCodec = cfg.Video.Codec
	s.AudioCodec = cfg.Audio.Codec
	s.FPS = cfg.Video.FPS
	s.Bitrate = cfg.Video.Bitrate
	handleRtspServerFlags(s)
	return s
}

func doServe(ctx context.Context, o *serveOpts) (err error) {
	var cfg *config.Config
	if cfg, err = loadConfig(o); err != nil {
		return
	}
	var format vsource.PixelFormat
	if format, err = vsource.ParsePixelFormat(o.pixelFormat); err != nil {
		return
	}
	if format != vsource.FormatRGBA && format != vsource.FormatBGRA {
		return errors.Errorf("test source draws rgba or bgra, not %s", format)
	}

	var m *media
	if m, err = setupMedia(cfg); err != nil {
		return
	}

	log := logrus.WithFields(logrus.Fields{"function": "serve"})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errc := make(chan error, 8)
	goRun := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.WithFields(logrus.Fields{"task": name, "error": err}).Error("Task failed")
				select {
				case errc <- errors.Wrap(err, name):
				default:
				}
				cancel()
			}
		}()
	}

	for ch := 0; ch < m.src.Channels(); ch++ {
		v := &testsrc.Video{
			Pipe:   m.src.Pipe(ch),
			Config: m.src.Config(ch),
			FPS:    cfg.Video.FPS,
			Format: format,
			Logger: logrus.StandardLogger(),
		}
		goRun(m.src.PipeName(ch), v.Run)
	}
	for ch, dst := range m.filter {
		src, dst := m.src.PipeName(ch), dst
		goRun("filter:"+dst, func(ctx context.Context) error {
			return m.stage.Run(ctx, src, dst)
		})
	}
	if m.apipe != nil {
		a := &testsrc.Audio{
			Pipe:   m.apipe,
			Config: cfg.AudioConfig(),
			Freq:   o.toneFreq,
			Logger: logrus.StandardLogger(),
		}
		goRun(m.apipe.Name(), a.Run)
	}

	rs := newRtspServer(cfg, m)
	var lis net.Listener
	if lis, err = net.Listen("tcp", cfg.RTSP.Listen); err != nil {
		cancel()
		wg.Wait()
		return errors.Wrap(err, "rtsp listen")
	}
	log.WithFields(logrus.Fields{
		"addr":   lis.Addr().String(),
		"object": rs.Object,
		"codec":  rs.VideoCodec,
		"audio":  rs.Audio != nil,
	}).Info("RTSP server listening")
	goRun("rtsp", func(ctx context.Context) error {
		return rs.Serve(ctx, lis)
	})

	if cfg.API.Listen != "" {
		var alis net.Listener
		if alis, err = net.Listen("tcp", cfg.API.Listen); err != nil {
			cancel()
			wg.Wait()
			return errors.Wrap(err, "api listen")
		}
		as := api.NewServer(m.reg, rs, m.stage)
		goRun("api", func(ctx context.Context) error {
			return as.Serve(ctx, alis)
		})
	}

	<-ctx.Done()
	wg.Wait()

	m.reg.Each(func(p *vsource.Pipeline) {
		m.reg.Remove(p.Name())
	})

	select {
	case err = <-errc:
	default:
	}
	log.WithField("error", err).Info("Server stopped")
	return
}

func doSDP(o *serveOpts, addr string) (err error) {
	var cfg *config.Config
	if cfg, err = loadConfig(o); err != nil {
		return
	}
	var m *media
	if m, err = setupMedia(cfg); err != nil {
		return
	}
	var b []byte
	if b, err = newRtspServer(cfg, m).SDP(addr); err != nil {
		return
	}
	fmt.Print(string(b))
	return
}
