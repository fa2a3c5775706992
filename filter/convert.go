package filter

import (
	"github.com/nareix/gastream/vsource"
)

// BT.601 limited-range coefficients, 8-bit fixed point.
func rgbToY(r, g, b int) byte {
	return byte(((66*r + 129*g + 25*b + 128) >> 8) + 16)
}

func rgbToU(r, g, b int) byte {
	return byte(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
}

func rgbToV(r, g, b int) byte {
	return byte(((112*r - 94*g - 18*b + 128) >> 8) + 128)
}

// RGBAToYUV420P converts a packed 4-byte-per-pixel source into planar 4:2:0.
// Chroma is the average of each 2x2 block. BGRA sources are handled by the
// frame's format tag.
func RGBAToYUV420P(dst, src *vsource.Frame, width, height int) {
	ri, bi := 0, 2
	if src.Format == vsource.FormatBGRA {
		ri, bi = 2, 0
	}
	stride := src.Stride
	y, u, v := dst.Planes(width, height)
	cw := (width + 1) / 2

	for row := 0; row < height; row++ {
		line := src.Buf[row*stride:]
		yline := y[row*width:]
		for col := 0; col < width; col++ {
			px := line[col*4:]
			yline[col] = rgbToY(int(px[ri]), int(px[1]), int(px[bi]))
		}
	}

	for row := 0; row < height; row += 2 {
		for col := 0; col < width; col += 2 {
			var r, g, b, n int
			for dy := 0; dy < 2 && row+dy < height; dy++ {
				line := src.Buf[(row+dy)*stride:]
				for dx := 0; dx < 2 && col+dx < width; dx++ {
					px := line[(col+dx)*4:]
					r += int(px[ri])
					g += int(px[1])
					b += int(px[bi])
					n++
				}
			}
			r, g, b = r/n, g/n, b/n
			ci := (row/2)*cw + col/2
			u[ci] = rgbToU(r, g, b)
			v[ci] = rgbToV(r, g, b)
		}
	}

	dst.Format = vsource.FormatYUV420P
	dst.Linesize = [vsource.MaxStride]int{width, cw, cw, 0}
	dst.Size = vsource.YUV420PSize(width, height)
}

// CopyYUV420P relays a frame that is already planar 4:2:0.
func CopyYUV420P(dst, src *vsource.Frame, width, height int) {
	size := vsource.YUV420PSize(width, height)
	n := size
	if n > len(src.Buf) {
		n = len(src.Buf)
	}
	copy(dst.Buf[:size], src.Buf[:n])
	dst.Format = vsource.FormatYUV420P
	dst.Linesize = src.Linesize
	dst.Size = size
}
