package rtsp

import (
	"io"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T) (*Conn, net.Conn) {
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return &Conn{server: &Server{}, nc: a}, b
}

func TestWriteInterleavedSkipsEmpty(t *testing.T) {
	c, peer := pipeConn(t)

	payload := []byte("0123456789")
	batch := append([]byte{0, 0, 0, 10}, payload...)
	batch = append(batch, 0, 0, 0, 0)

	got := make(chan []byte, 1)
	go func() {
		b := make([]byte, 14)
		io.ReadFull(peer, b)
		got <- b
	}()

	n, err := c.WriteInterleaved(1, batch)
	require.NoError(t, err)
	assert.Equal(t, 18, n)

	want := append([]byte{'$', 2, 0, 10}, payload...)
	assert.Equal(t, want, <-got)
}

func TestWriteInterleavedShortBatch(t *testing.T) {
	c, peer := pipeConn(t)

	n, err := c.WriteInterleaved(0, []byte{0, 0, 1})
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.WriteInterleaved(0, []byte{0, 0, 0, 0})
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	go io.ReadFull(peer, make([]byte, 5))
	batch := []byte{0, 0, 0, 1, 'x', 0, 0, 0, 9, 'y'}
	n, err = c.WriteInterleaved(0, batch)
	assert.Equal(t, ErrShortBatch, errors.Cause(err))
	assert.Equal(t, 5, n)

	n, err = c.WriteInterleaved(0, []byte{0, 1, 0, 0, 0})
	assert.Equal(t, ErrShortBatch, errors.Cause(err))
	assert.Equal(t, 0, n)
}

func TestWriteInterleavedWriteError(t *testing.T) {
	c, peer := pipeConn(t)
	peer.Close()

	_, err := c.WriteInterleaved(0, []byte{0, 0, 0, 1, 'x'})
	assert.Error(t, err)
}
