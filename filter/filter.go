// Package filter converts frames drained from one pipeline into planar
// YUV420p and republishes them into another, the consumer-to-producer
// chaining used between capture and encoding.
package filter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/pipeline"
	"github.com/nareix/gastream/vsource"
)

type State int

const (
	StateUninitialized State = iota
	StateRegistered
	StateRunning
	StateTerminated
)

var StateString = map[State]string{
	StateUninitialized: "Uninitialized",
	StateRegistered:    "Registered",
	StateRunning:       "Running",
	StateTerminated:    "Terminated",
}

func (s State) String() string {
	return StateString[s]
}

var ErrNotRegistered = errors.New("filter: destination not registered")

type pipePair struct {
	src, dst string
}

// Stage runs RGB to YUV filters between pipelines of one registry.
type Stage struct {
	Logger logrus.FieldLogger

	reg *vsource.Registry

	l      sync.Mutex
	states map[pipePair]State
}

func NewStage(reg *vsource.Registry) *Stage {
	return &Stage{
		Logger: logrus.StandardLogger(),
		reg:    reg,
		states: map[pipePair]State{},
	}
}

func (s *Stage) State(src, dst string) State {
	s.l.Lock()
	defer s.l.Unlock()
	return s.states[pipePair{src, dst}]
}

type Instance struct {
	Src   string `json:"src"`
	Dst   string `json:"dst"`
	State State  `json:"-"`
}

// Instances lists every pair ever initialized, sorted by destination.
func (s *Stage) Instances() (out []Instance) {
	s.l.Lock()
	for k, st := range s.states {
		out = append(out, Instance{Src: k.src, Dst: k.dst, State: st})
	}
	s.l.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Dst < out[j].Dst
	})
	return
}

func (s *Stage) setState(k pipePair, st State) {
	s.l.Lock()
	s.states[k] = st
	s.l.Unlock()
}

// Init creates and registers the destination pipeline for src -> dst. A
// second call for the same pair is a no-op.
func (s *Stage) Init(src, dst string) (err error) {
	k := pipePair{src, dst}

	s.l.Lock()
	defer s.l.Unlock()

	if s.states[k] != StateUninitialized {
		return
	}

	var srcpipe *vsource.Pipeline
	if srcpipe, err = s.reg.Get(src); err != nil {
		return errors.Wrap(err, "filter: init")
	}
	cfg, ok := srcpipe.Private()
	if !ok {
		return errors.Errorf("filter: init: %s carries no channel config", src)
	}

	dstpipe := pipeline.New[*vsource.Frame, vsource.Config](dst)
	dstpipe.SetPrivate(cfg)
	if _, err = dstpipe.InitPool(vsource.PoolSize, func(int) (*vsource.Frame, error) {
		return vsource.NewYUVFrame(cfg.Width, cfg.Height)
	}); err != nil {
		return errors.Wrap(err, "filter: init")
	}
	if err = s.reg.Register(dstpipe); err != nil {
		return errors.Wrap(err, "filter: init")
	}

	s.states[k] = StateRegistered
	return
}

// Run drains src into dst until src is closed or ctx ends. On exit the
// destination pipeline is removed from the registry and closed.
func (s *Stage) Run(ctx context.Context, src, dst string) (err error) {
	k := pipePair{src, dst}
	if st := s.State(src, dst); st != StateRegistered {
		return errors.Wrapf(ErrNotRegistered, "%s -> %s is %s", src, dst, st)
	}

	log := s.Logger.WithFields(logrus.Fields{
		"function": "Run",
		"src":      src,
		"dst":      dst,
	})

	var srcpipe, dstpipe *vsource.Pipeline
	if srcpipe, err = s.reg.Get(src); err != nil {
		s.setState(k, StateTerminated)
		return errors.Wrap(err, "filter: run")
	}
	if dstpipe, err = s.reg.Get(dst); err != nil {
		s.setState(k, StateTerminated)
		return errors.Wrap(err, "filter: run")
	}

	cfg, _ := srcpipe.Private()
	client, err := srcpipe.Register(fmt.Sprintf("filter:%s", dst))
	if err != nil {
		s.setState(k, StateTerminated)
		return errors.Wrap(err, "filter: run")
	}

	defer func() {
		client.Close()
		s.reg.Remove(dst)
		s.setState(k, StateTerminated)
		log.WithField("error", err).Info("Filter terminated")
	}()

	s.setState(k, StateRunning)
	log.WithFields(logrus.Fields{
		"width":   cfg.Width,
		"height":  cfg.Height,
		"picsize": vsource.YUV420PSize(cfg.Width, cfg.Height),
	}).Info("Filter started")

	for {
		var srcslot *vsource.Slot
		if srcslot, err = client.Next(ctx); err != nil {
			switch errors.Cause(err) {
			case pipeline.ErrClosed, context.Canceled, context.DeadlineExceeded:
				err = nil
			}
			return
		}

		if err = s.convert(srcpipe, dstpipe, srcslot, cfg); err != nil {
			return
		}
	}
}

func (s *Stage) convert(srcpipe, dstpipe *vsource.Pipeline, srcslot *vsource.Slot, cfg vsource.Config) (err error) {
	defer srcpipe.ReleaseSlot(srcslot)

	var dstslot *vsource.Slot
	if dstslot, err = dstpipe.AcquireSlot(); err != nil {
		if errors.Cause(err) == pipeline.ErrExhausted {
			s.Logger.WithField("dst", dstpipe.Name()).Warn("Destination exhausted, frame dropped")
			return nil
		}
		return
	}

	srcframe, dstframe := srcslot.Data, dstslot.Data
	dstframe.PTS = srcframe.PTS
	switch srcframe.Format {
	case vsource.FormatRGBA, vsource.FormatBGRA:
		if srcframe.Stride < cfg.Width*vsource.BytesPerPixel ||
			len(srcframe.Buf) < (cfg.Height-1)*srcframe.Stride+cfg.Width*vsource.BytesPerPixel {
			dstpipe.Discard(dstslot)
			return errors.Wrapf(vsource.ErrInvalidConfig, "filter: %dx%d frame with stride %d and %d bytes",
				cfg.Width, cfg.Height, srcframe.Stride, len(srcframe.Buf))
		}
		RGBAToYUV420P(dstframe, srcframe, cfg.Width, cfg.Height)
	case vsource.FormatYUV420P:
		CopyYUV420P(dstframe, srcframe, cfg.Width, cfg.Height)
	default:
		dstpipe.Discard(dstslot)
		return errors.Errorf("filter: unsupported source format %s", srcframe.Format)
	}

	if err = dstpipe.Publish(dstslot); err != nil {
		return
	}
	dstpipe.NotifyAll()
	return
}
