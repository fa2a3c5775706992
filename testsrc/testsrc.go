// Package testsrc produces synthetic pictures and sound into vsource
// pipelines at a real-time pace, standing in for a capture backend.
package testsrc

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/av/pktop"
	"github.com/nareix/gastream/pipeline"
	"github.com/nareix/gastream/vsource"
)

// SMPTE-style bars, left to right.
var bars = [][3]byte{
	{235, 235, 235},
	{235, 235, 16},
	{16, 235, 235},
	{16, 235, 16},
	{235, 16, 235},
	{235, 16, 16},
	{16, 16, 235},
	{16, 16, 16},
}

// DrawBars paints vertical colour bars scrolled left by shift pixels.
func DrawBars(f *vsource.Frame, width, height, shift int, format vsource.PixelFormat) {
	ri, bi := 0, 2
	if format == vsource.FormatBGRA {
		ri, bi = 2, 0
	}
	barw := width / len(bars)
	if barw == 0 {
		barw = 1
	}
	for row := 0; row < height; row++ {
		line := f.Buf[row*f.Stride:]
		for col := 0; col < width; col++ {
			c := bars[((col+shift)/barw)%len(bars)]
			px := line[col*4:]
			px[ri], px[1], px[bi], px[3] = c[0], c[1], c[2], 0xff
		}
	}
	f.Format = format
	f.Size = height * f.Stride
}

// Tone fills f with a sine at freq Hz, continuing from sample offset pos.
func Tone(f *vsource.Frame, sampleRate, channels, samples int, freq float64, pos int64) {
	n := 0
	for i := 0; i < samples; i++ {
		v := int16(math.Sin(2*math.Pi*freq*float64(pos+int64(i))/float64(sampleRate)) * 8000)
		for ch := 0; ch < channels; ch++ {
			f.Buf[n] = byte(v)
			f.Buf[n+1] = byte(uint16(v) >> 8)
			n += 2
		}
	}
	f.Format = vsource.FormatS16
	f.Size = n
}

func publish(pipe *vsource.Pipeline, pts int64, fill func(f *vsource.Frame)) (err error) {
	var slot *vsource.Slot
	if slot, err = pipe.AcquireSlot(); err != nil {
		return
	}
	fill(slot.Data)
	slot.Data.PTS = pts
	if err = pipe.Publish(slot); err != nil {
		return
	}
	pipe.NotifyAll()
	return
}

func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Cause(err) == pipeline.ErrClosed
}

type Video struct {
	Pipe   *vsource.Pipeline
	Config vsource.Config
	FPS    int
	Format vsource.PixelFormat
	Logger logrus.FieldLogger
}

// Run publishes one frame per 1/FPS until ctx ends or the pipeline closes.
// Frame PTS counts frames from zero.
func (v *Video) Run(ctx context.Context) (err error) {
	if v.FPS <= 0 {
		return errors.Errorf("testsrc: bad fps %d", v.FPS)
	}
	log := v.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{
		"function": "Video.Run",
		"pipe":     v.Pipe.Name(),
	})
	log.Info("Test pattern started")

	limiter := pktop.NewNativeRateLimiter()
	for pts := int64(0); ; pts++ {
		if err = limiter.Wait(ctx, time.Duration(pts)*time.Second/time.Duration(v.FPS)); err != nil {
			return nil
		}
		err = publish(v.Pipe, pts, func(f *vsource.Frame) {
			DrawBars(f, v.Config.Width, v.Config.Height, int(pts)*4, v.Format)
		})
		if errors.Cause(err) == pipeline.ErrExhausted {
			log.Warn("All slots checked out, frame skipped")
			continue
		}
		if err != nil {
			if stopped(ctx, err) {
				return nil
			}
			return
		}
	}
}

type Audio struct {
	Pipe   *vsource.Pipeline
	Config vsource.Config
	Freq   float64
	Logger logrus.FieldLogger
}

// Run publishes Config.Samples samples per frame. Frame PTS counts samples.
func (a *Audio) Run(ctx context.Context) (err error) {
	cfg := a.Config
	if cfg.SampleRate <= 0 || cfg.Samples <= 0 || cfg.Channels <= 0 {
		return errors.Wrap(vsource.ErrInvalidConfig, "testsrc: audio")
	}
	freq := a.Freq
	if freq == 0 {
		freq = 440
	}
	log := a.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{
		"function": "Audio.Run",
		"pipe":     a.Pipe.Name(),
	})
	log.WithField("freq", freq).Info("Test tone started")

	limiter := pktop.NewNativeRateLimiter()
	for pos := int64(0); ; pos += int64(cfg.Samples) {
		if err = limiter.Wait(ctx, time.Duration(pos)*time.Second/time.Duration(cfg.SampleRate)); err != nil {
			return nil
		}
		err = publish(a.Pipe, pos, func(f *vsource.Frame) {
			Tone(f, cfg.SampleRate, cfg.Channels, cfg.Samples, freq, pos)
		})
		if errors.Cause(err) == pipeline.ErrExhausted {
			log.Warn("All slots checked out, frame skipped")
			continue
		}
		if err != nil {
			if stopped(ctx, err) {
				return nil
			}
			return
		}
	}
}
