// Package pio has the fixed-width integer helpers used by the RTSP
// interleaved framing and the PCM payload code. Read and Write variants
// advance an offset; a nil buffer only measures.
package pio

import "fmt"

// Error reports a short buffer: Need bytes were wanted at offset N.
type Error struct {
	N    int
	Need int
}

func (e Error) Error() string {
	return fmt.Sprintf("pio: short buffer at %d (need %d)", e.N, e.Need)
}

func U16BE(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func U16LE(b []byte) uint16 {
	return uint16(b[1])<<8 | uint16(b[0])
}

func U32BE(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func PutU16BE(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func PutU32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func need(b []byte, n *int, size int) error {
	if len(b) < *n+size {
		return Error{N: *n, Need: size}
	}
	return nil
}

func ReadU32BE(b []byte, n *int) (v uint32, err error) {
	if err = need(b, n, 4); err != nil {
		return
	}
	v = U32BE(b[*n:])
	*n += 4
	return
}

// ReadBytes returns a sub-slice of b without copying.
func ReadBytes(b []byte, n *int, length int) (v []byte, err error) {
	if err = need(b, n, length); err != nil {
		return
	}
	v = b[*n : *n+length]
	*n += length
	return
}

func WriteU8(b []byte, n *int, v uint8) {
	if b != nil {
		b[*n] = v
	}
	*n++
}

func WriteU16BE(b []byte, n *int, v uint16) {
	if b != nil {
		PutU16BE(b[*n:], v)
	}
	*n += 2
}

func WriteU32BE(b []byte, n *int, v uint32) {
	if b != nil {
		PutU32BE(b[*n:], v)
	}
	*n += 4
}

func WriteBytes(b []byte, n *int, v []byte) {
	if b != nil {
		copy(b[*n:], v)
	}
	*n += len(v)
}
