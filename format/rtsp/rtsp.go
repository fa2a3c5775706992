// Package rtsp serves the configured channels over RTSP/1.0. Each accepted
// connection runs its own IDLE, READY, PLAYING, PAUSE, TEARDOWN state machine
// and streams RTP over UDP or interleaved on the control connection.
package rtsp

import (
	"github.com/pkg/errors"
)

const Version = "RTSP/1.0"

const DefaultReadBufferSize = 64 * 1024

var PublicMethods = []string{"OPTIONS", "DESCRIBE", "SETUP", "TEARDOWN", "PLAY"}

var (
	ErrBufferFull = errors.New("rtsp: read buffer full")
	ErrShortBatch = errors.New("rtsp: short interleaved batch")
	ErrVersion    = errors.New("rtsp: unsupported protocol version")
	ErrBadRequest = errors.New("rtsp: malformed request")
)

type State int

const (
	StateIdle State = iota
	StateReady
	StatePlaying
	StatePause
	StateTeardown
)

var StateString = map[State]string{
	StateIdle:     "IDLE",
	StateReady:    "READY",
	StatePlaying:  "PLAYING",
	StatePause:    "PAUSE",
	StateTeardown: "TEARDOWN",
}

func (s State) String() string {
	return StateString[s]
}
