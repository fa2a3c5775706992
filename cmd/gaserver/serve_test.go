package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nareix/gastream/config"
	"github.com/nareix/gastream/filter"
	"github.com/nareix/gastream/format/rtsp"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "gaserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSetupMedia(t *testing.T) {
	path := writeConfig(t, `
video:
  channels:
    - {width: 64, height: 32}
    - {width: 32, height: 16}
audio:
  enabled: true
`)
	cfg, err := loadConfig(&serveOpts{configPath: path, logLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	m, err := setupMedia(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"audio-0", "filter-0", "filter-1", "video-0", "video-1"}, m.reg.Names())
	assert.Equal(t, []string{"filter-0", "filter-1"}, m.filter)
	assert.Equal(t, filter.StateRegistered, m.stage.State("video-1", "filter-1"))

	require.Len(t, m.video, 2)
	assert.Equal(t, "filter-1", m.video[1].Pipe)
	assert.Equal(t, 128, m.video[1].Config.Stride)
	require.NotNil(t, m.audio)
	assert.Equal(t, 2, m.audio.Config.RTPID)

	s := newRtspServer(cfg, m)
	assert.Equal(t, 2, s.AudioStreamID())
	b, err := s.SDP("127.0.0.1")
	require.NoError(t, err)
	assert.Contains(t, string(b), "a=control:streamid=2")
}

func TestSetupMediaNoFilter(t *testing.T) {
	cfg := config.Default()
	cfg.Filter.Enabled = false
	cfg.Video.Channels[0] = config.ChannelConfig{Width: 16, Height: 16, Stride: 64}

	m, err := setupMedia(cfg)
	require.NoError(t, err)
	assert.Nil(t, m.stage)
	assert.Empty(t, m.filter)
	assert.Equal(t, "video-0", m.video[0].Pipe)
	assert.Nil(t, m.audio)
}

func TestLoadConfigBadLevel(t *testing.T) {
	_, err := loadConfig(&serveOpts{logLevel: "loud"})
	assert.Equal(t, config.ErrInvalid, errors.Cause(err))
}

func TestDebugFlags(t *testing.T) {
	defer func() {
		debugRtspRequest, debugRtspInterleaved = false, false
	}()

	var f debugFlags
	opts := []string{"req", "interleaved"}
	f.a = append(f.a, &opts)
	f.m = append(f.m, debugRtspOptsMap)
	require.True(t, f.Parse())
	assert.True(t, debugRtspRequest)
	assert.True(t, debugRtspInterleaved)
	assert.False(t, debugRtspResponse)

	s := rtsp.NewServer()
	handleRtspServerFlags(s)
	assert.NotNil(t, s.LogRequest)
	assert.NotNil(t, s.LogInterleaved)
	assert.Nil(t, s.LogResponse)

	bad := []string{"bogus"}
	f.a[0] = &bad
	assert.False(t, f.Parse())
}

func TestResponseLine(t *testing.T) {
	resp := rtsp.NewResponse(rtsp.StatusSessionNotFound, 7)
	line := responseLine("conn-1", resp)
	assert.Equal(t, "> conn-1 454 Session Not Found CSeq 7", line)
	assert.NotContains(t, line, "\n")
}
