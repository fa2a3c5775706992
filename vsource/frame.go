package vsource

import (
	"unsafe"

	"github.com/pkg/errors"
)

const (
	MaxStride = 4
	// buffers start on this boundary for SIMD-friendly access
	Alignment = 16
)

type PixelFormat int

const (
	FormatRGBA PixelFormat = iota
	FormatBGRA
	FormatYUV420P
	// interleaved signed 16-bit little-endian PCM, used by audio channels
	FormatS16
)

var PixelFormatString = map[PixelFormat]string{
	FormatRGBA:    "rgba",
	FormatBGRA:    "bgra",
	FormatYUV420P: "yuv420p",
	FormatS16:     "s16",
}

func (f PixelFormat) String() string {
	if s, ok := PixelFormatString[f]; ok {
		return s
	}
	return "unknown"
}

func ParsePixelFormat(s string) (PixelFormat, error) {
	for f, name := range PixelFormatString {
		if name == s {
			return f, nil
		}
	}
	return 0, errors.Errorf("vsource: unknown pixel format %q", s)
}

// Frame is one reusable image (or audio chunk) buffer. The capacity of Buf is
// fixed when the frame is created; producers set Size to the number of
// meaningful bytes.
type Frame struct {
	PTS      int64
	Format   PixelFormat
	Linesize [MaxStride]int
	Stride   int
	Size     int
	Buf      []byte
}

func alignedBuffer(size int) []byte {
	raw := make([]byte, size+Alignment)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) & (Alignment - 1)); rem != 0 {
		off = Alignment - rem
	}
	return raw[off : off+size : off+size]
}

// NewFrame allocates a packed frame of height*stride bytes.
func NewFrame(width, height, stride int) (f *Frame, err error) {
	if width <= 0 || height <= 0 || stride < width*BytesPerPixel {
		err = errors.Wrapf(ErrInvalidConfig, "frame %dx%d stride %d", width, height, stride)
		return
	}
	f = &Frame{
		Format: FormatRGBA,
		Stride: stride,
		Size:   height * stride,
		Buf:    alignedBuffer(height * stride),
	}
	for i := range f.Linesize {
		f.Linesize[i] = stride
	}
	return
}

// BytesPerPixel is the size of one packed RGBA or BGRA pixel.
const BytesPerPixel = 4

// YUV420PSize is the byte size of a planar 4:2:0 picture.
func YUV420PSize(width, height int) int {
	cw, ch := (width+1)/2, (height+1)/2
	return width*height + 2*cw*ch
}

// NewYUVFrame allocates a frame sized for planar YUV420p output.
func NewYUVFrame(width, height int) (f *Frame, err error) {
	if width <= 0 || height <= 0 {
		err = errors.Wrapf(ErrInvalidConfig, "yuv frame %dx%d", width, height)
		return
	}
	size := YUV420PSize(width, height)
	f = &Frame{
		Format: FormatYUV420P,
		Stride: width,
		Size:   size,
		Buf:    alignedBuffer(size),
	}
	f.Linesize[0] = width
	f.Linesize[1] = (width + 1) / 2
	f.Linesize[2] = (width + 1) / 2
	return
}

// NewAudioFrame allocates room for samples frames of S16 PCM.
func NewAudioFrame(samples, channels int) (f *Frame, err error) {
	if samples <= 0 || channels <= 0 {
		err = errors.Wrapf(ErrInvalidConfig, "audio frame %d samples %d channels", samples, channels)
		return
	}
	size := samples * channels * 2
	f = &Frame{
		Format: FormatS16,
		Stride: channels * 2,
		Size:   size,
		Buf:    alignedBuffer(size),
	}
	f.Linesize[0] = size
	return
}

// Bytes returns the meaningful part of the buffer.
func (f *Frame) Bytes() []byte {
	if f.Size > len(f.Buf) {
		return f.Buf
	}
	return f.Buf[:f.Size]
}

// Planes splits a YUV420p frame of the given dimensions into Y, U and V.
func (f *Frame) Planes(width, height int) (y, u, v []byte) {
	ysize := width * height
	csize := ((width + 1) / 2) * ((height + 1) / 2)
	y = f.Buf[:ysize]
	u = f.Buf[ysize : ysize+csize]
	v = f.Buf[ysize+csize : ysize+2*csize]
	return
}
