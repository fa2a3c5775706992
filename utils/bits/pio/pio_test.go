package pio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	payload := []byte{0xde, 0xad}

	n := 0
	WriteU8(nil, &n, '$')
	WriteU8(nil, &n, 2)
	WriteU16BE(nil, &n, uint16(len(payload)))
	WriteBytes(nil, &n, payload)
	WriteU32BE(nil, &n, 0x01020304)
	require.Equal(t, 10, n)

	b := make([]byte, n)
	n = 0
	WriteU8(b, &n, '$')
	WriteU8(b, &n, 2)
	WriteU16BE(b, &n, uint16(len(payload)))
	WriteBytes(b, &n, payload)
	WriteU32BE(b, &n, 0x01020304)
	assert.Equal(t, []byte{'$', 2, 0, 2, 0xde, 0xad, 1, 2, 3, 4}, b)

	assert.Equal(t, uint16(len(payload)), U16BE(b[2:]))

	n = 4
	data, err := ReadBytes(b, &n, int(U16BE(b[2:])))
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	v, err := ReadU32BE(b, &n)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), v)

	_, err = ReadU32BE(b, &n)
	assert.Equal(t, Error{N: 10, Need: 4}, err)
	assert.Equal(t, 10, n)
}

func TestLittleEndian(t *testing.T) {
	assert.Equal(t, uint16(0x1234), U16LE([]byte{0x34, 0x12}))
	assert.Equal(t, uint16(0x3412), U16BE([]byte{0x34, 0x12}))
}
