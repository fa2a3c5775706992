package rtsp

import (
	"github.com/pkg/errors"

	"github.com/nareix/gastream/utils/bits/pio"
)

const maxInterleavedSize = 0xffff

// WriteInterleaved frames every packet of a length-prefixed batch as a '$'
// record on the RTP channel of streamID. Zero-length packets are consumed
// without being sent. It returns the number of batch bytes consumed; a
// batch shorter than one length prefix counts as consumed.
func (c *Conn) WriteInterleaved(streamID int, batch []byte) (consumed int, err error) {
	if len(batch) < 4 {
		return len(batch), nil
	}

	// a record header is as long as the length prefix it replaces
	out := make([]byte, len(batch))
	w, n := 0, 0
	for n < len(batch) {
		start := n
		var size uint32
		if size, err = pio.ReadU32BE(batch, &n); err != nil {
			n = start
			err = errors.Wrapf(ErrShortBatch, "%d trailing bytes", len(batch)-start)
			break
		}
		if size > maxInterleavedSize {
			n = start
			err = errors.Wrapf(ErrShortBatch, "packet of %d bytes", size)
			break
		}
		var payload []byte
		if payload, err = pio.ReadBytes(batch, &n, int(size)); err != nil {
			n = start
			err = errors.Wrapf(ErrShortBatch, "packet of %d bytes truncated", size)
			break
		}
		if size == 0 {
			continue
		}
		pio.WriteU8(out, &w, '$')
		pio.WriteU8(out, &w, byte(streamID<<1))
		pio.WriteU16BE(out, &w, uint16(size))
		pio.WriteBytes(out, &w, payload)
	}
	out = out[:w]

	if len(out) > 0 {
		if werr := c.write(out); werr != nil {
			return 0, werr
		}
		if fn := c.server.LogInterleaved; fn != nil {
			fn(c, false, out)
		}
	}
	consumed = n
	return
}

// write sends b under the connection's write lock so replies and media
// records never interleave mid-unit.
func (c *Conn) write(b []byte) (err error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err = c.nc.Write(b); err != nil {
		err = errors.Wrap(err, "rtsp: write")
	}
	return
}
