package testsrc

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nareix/gastream/pipeline"
	"github.com/nareix/gastream/utils/bits/pio"
	"github.com/nareix/gastream/vsource"
)

func TestDrawBars(t *testing.T) {
	f, err := vsource.NewFrame(16, 2, 64)
	require.NoError(t, err)

	DrawBars(f, 16, 2, 0, vsource.FormatRGBA)
	assert.Equal(t, []byte{235, 235, 235, 0xff}, f.Buf[0:4])
	assert.Equal(t, []byte{235, 235, 16, 0xff}, f.Buf[8:12])
	assert.Equal(t, []byte{16, 16, 16, 0xff}, f.Buf[64+15*4:64+16*4])

	DrawBars(f, 16, 2, 0, vsource.FormatBGRA)
	assert.Equal(t, vsource.FormatBGRA, f.Format)
	assert.Equal(t, []byte{16, 235, 235, 0xff}, f.Buf[8:12])

	DrawBars(f, 16, 2, 2, vsource.FormatRGBA)
	assert.Equal(t, []byte{235, 235, 16, 0xff}, f.Buf[0:4])
}

func TestTone(t *testing.T) {
	f, err := vsource.NewAudioFrame(100, 2)
	require.NoError(t, err)
	Tone(f, 8000, 2, 100, 1000, 0)
	assert.Equal(t, 400, f.Size)
	assert.Equal(t, []byte{0, 0, 0, 0}, f.Buf[:4])

	l := int16(pio.U16LE(f.Buf[4:]))
	r := int16(pio.U16LE(f.Buf[6:]))
	assert.Equal(t, l, r)
	assert.Greater(t, l, int16(0))
}

func TestVideoRun(t *testing.T) {
	reg := vsource.NewRegistry()
	src, err := vsource.SetupOne(reg, "video-%d", 0, 8, 8, 32)
	require.NoError(t, err)

	client, err := src.Pipe(0).Register("test")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	v := &Video{Pipe: src.Pipe(0), Config: src.Config(0), FPS: 100}
	go func() { done <- v.Run(ctx) }()

	wctx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer wcancel()
	for want := int64(0); want < 3; want++ {
		slot, err := client.Next(wctx)
		require.NoError(t, err)
		assert.Equal(t, want, slot.Data.PTS)
		assert.Equal(t, vsource.FormatRGBA, slot.Data.Format)
		src.Pipe(0).ReleaseSlot(slot)
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestAudioStopsOnClose(t *testing.T) {
	reg := vsource.NewRegistry()
	cfg := vsource.Config{SampleRate: 8000, Channels: 1, Samples: 80}
	pipe, err := vsource.SetupAudio(reg, "audio-0", cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	a := &Audio{Pipe: pipe, Config: cfg}
	go func() { done <- a.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return pipe.Stats().Published >= 2
	}, 5*time.Second, time.Millisecond)
	reg.Remove("audio-0")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("audio source did not stop")
	}
	_, err = pipe.AcquireSlot()
	assert.Equal(t, pipeline.ErrClosed, errors.Cause(err))
}
