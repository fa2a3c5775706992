package rtsp

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/nareix/gastream/utils/bits/pio"
)

const interleavedHeaderSize = 4

// readBuffer splits the control connection into text lines and '$' records.
// Unread bytes live in buf[head:tail]; returned slices alias buf and are
// valid until the next call.
type readBuffer struct {
	r          io.Reader
	buf        []byte
	head, tail int
}

func newReadBuffer(r io.Reader, size int) *readBuffer {
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	return &readBuffer{
		r:   r,
		buf: make([]byte, size),
	}
}

// unit reports the length of the complete unit at the head, or 0.
func (rb *readBuffer) unit() int {
	b := rb.buf[rb.head:rb.tail]
	if len(b) == 0 {
		return 0
	}
	if b[0] == '$' {
		if len(b) < interleavedHeaderSize {
			return 0
		}
		n := interleavedHeaderSize + int(pio.U16BE(b[2:]))
		if len(b) < n {
			return 0
		}
		return n
	}
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

func (rb *readBuffer) fill() (err error) {
	if rb.head > 0 {
		copy(rb.buf, rb.buf[rb.head:rb.tail])
		rb.tail -= rb.head
		rb.head = 0
	}
	if rb.tail == len(rb.buf) {
		return errors.Wrapf(ErrBufferFull, "%d bytes without a complete unit", rb.tail)
	}
	var n int
	if n, err = rb.r.Read(rb.buf[rb.tail:]); n > 0 {
		rb.tail += n
		err = nil
	}
	return
}

// next returns one text line including its terminator, or one whole
// interleaved record including the 4-byte header.
func (rb *readBuffer) next() (b []byte, err error) {
	for {
		if n := rb.unit(); n > 0 {
			b = rb.buf[rb.head : rb.head+n]
			rb.head += n
			return
		}
		if err = rb.fill(); err != nil {
			return
		}
	}
}

func (rb *readBuffer) buffered() int {
	return rb.tail - rb.head
}
