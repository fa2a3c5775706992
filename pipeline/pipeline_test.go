package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type meta struct {
	ID int
}

func newTestPipe(t *testing.T, capacity int) *Pipeline[*int64, meta] {
	p := New[*int64, meta]("test")
	_, err := p.InitPool(capacity, func(i int) (*int64, error) {
		v := int64(-1)
		return &v, nil
	})
	require.NoError(t, err)
	return p
}

func produce(t *testing.T, p *Pipeline[*int64, meta], v int64) {
	s, err := p.AcquireSlot()
	require.NoError(t, err)
	*s.Data = v
	require.NoError(t, p.Publish(s))
	p.NotifyAll()
}

func TestInitPoolOnce(t *testing.T) {
	p := newTestPipe(t, 4)
	assert.Equal(t, 4, p.BufCount())
	assert.Equal(t, 4, p.FreeCount())

	_, err := p.InitPool(4, nil)
	assert.Equal(t, ErrPoolInitialized, errors.Cause(err))

	_, err = New[int, meta]("x").InitPool(0, nil)
	assert.Error(t, err)

	_, err = New[int, meta]("y").AcquireSlot()
	assert.Equal(t, ErrPoolNotInitialized, errors.Cause(err))
}

func TestPrivateData(t *testing.T) {
	p := New[int, meta]("priv")
	_, ok := p.Private()
	assert.False(t, ok)

	p.SetPrivate(meta{ID: 3})
	m, ok := p.Private()
	assert.True(t, ok)
	assert.Equal(t, 3, m.ID)
}

func TestFIFO(t *testing.T) {
	p := newTestPipe(t, 8)
	for i := int64(0); i < 5; i++ {
		produce(t, p, i)
	}
	assert.Equal(t, 5, p.DataCount())

	for i := int64(0); i < 5; i++ {
		s := p.TryTakeFilled()
		require.NotNil(t, s)
		assert.Equal(t, i, *s.Data)
		require.NoError(t, p.ReleaseSlot(s))
	}
	assert.Nil(t, p.TryTakeFilled())
	assert.Equal(t, 8, p.FreeCount())
}

func TestOverwriteOldest(t *testing.T) {
	p := newTestPipe(t, 4)
	for i := int64(0); i < 6; i++ {
		produce(t, p, i)
		assert.Equal(t, p.BufCount(), p.DataCount()+p.FreeCount())
	}
	assert.Equal(t, 4, p.DataCount())
	assert.Equal(t, uint64(2), p.Stats().Evicted)

	var got []int64
	for s := p.TryTakeFilled(); s != nil; s = p.TryTakeFilled() {
		got = append(got, *s.Data)
		require.NoError(t, p.ReleaseSlot(s))
	}
	assert.Equal(t, []int64{2, 3, 4, 5}, got)
}

func TestExhausted(t *testing.T) {
	p := newTestPipe(t, 2)
	produce(t, p, 1)
	produce(t, p, 2)
	a := p.TryTakeFilled()
	b := p.TryTakeFilled()
	require.NotNil(t, a)
	require.NotNil(t, b)

	_, err := p.AcquireSlot()
	assert.Equal(t, ErrExhausted, errors.Cause(err))

	require.NoError(t, p.ReleaseSlot(a))
	s, err := p.AcquireSlot()
	require.NoError(t, err)
	assert.Same(t, a, s)
	require.NoError(t, p.Discard(s))
	require.NoError(t, p.ReleaseSlot(b))
	assert.Equal(t, 2, p.FreeCount())
}

func TestSlotStateChecks(t *testing.T) {
	p := newTestPipe(t, 2)
	s, err := p.AcquireSlot()
	require.NoError(t, err)

	assert.Equal(t, ErrSlotState, errors.Cause(p.ReleaseSlot(s)))
	require.NoError(t, p.Publish(s))
	assert.Equal(t, ErrSlotState, errors.Cause(p.Publish(s)))

	other := newTestPipe(t, 2)
	assert.Equal(t, ErrSlotState, errors.Cause(other.Publish(s)))
}

func TestClientRegistration(t *testing.T) {
	p := newTestPipe(t, 2)
	c, err := p.Register("a")
	require.NoError(t, err)
	_, err = p.Register("a")
	assert.Equal(t, ErrClientExists, errors.Cause(err))
	assert.Equal(t, 1, p.ClientCount())

	c.Close()
	c.Close()
	assert.Equal(t, 0, p.ClientCount())

	_, err = c.Next(context.Background())
	assert.Equal(t, ErrClosed, errors.Cause(err))
}

func TestNextBlocksUntilPublish(t *testing.T) {
	p := newTestPipe(t, 4)
	c, err := p.Register("consumer")
	require.NoError(t, err)
	defer c.Close()

	done := make(chan int64, 1)
	go func() {
		s, err := c.Next(context.Background())
		if err != nil {
			done <- -100
			return
		}
		done <- *s.Data
		p.ReleaseSlot(s)
	}()

	select {
	case <-done:
		t.Fatal("Next returned before any publish")
	case <-time.After(20 * time.Millisecond):
	}

	produce(t, p, 42)
	select {
	case v := <-done:
		assert.Equal(t, int64(42), v)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestNextCancel(t *testing.T) {
	p := newTestPipe(t, 2)
	c, err := p.Register("consumer")
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Next(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestCloseWakesClients(t *testing.T) {
	p := newTestPipe(t, 2)
	c, err := p.Register("consumer")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		errc <- c.Wait(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-errc:
		assert.Equal(t, ErrClosed, errors.Cause(err))
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the client")
	}
	_, err = p.AcquireSlot()
	assert.Equal(t, ErrClosed, errors.Cause(err))
}

func TestUnexpectedEmpty(t *testing.T) {
	p := newTestPipe(t, 2)
	c, err := p.Register("consumer")
	require.NoError(t, err)
	defer c.Close()

	p.NotifyAll()
	_, err = c.Next(context.Background())
	assert.Equal(t, ErrUnexpectedEmpty, errors.Cause(err))
}

func TestConsumerSeesOrderedTimestamps(t *testing.T) {
	p := newTestPipe(t, 8)
	c, err := p.Register("consumer")
	require.NoError(t, err)
	defer c.Close()

	const n = 500
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var seen []int64
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			s, err := c.Next(ctx)
			if err != nil {
				return
			}
			v := *s.Data
			p.ReleaseSlot(s)
			seen = append(seen, v)
			if v == n-1 {
				return
			}
		}
	}()

	for i := int64(0); i < n; i++ {
		produce(t, p, i)
	}
	wg.Wait()

	require.NotEmpty(t, seen)
	assert.Equal(t, int64(n-1), seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
	assert.Equal(t, p.BufCount(), p.DataCount()+p.FreeCount())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry[int, meta]()
	p := New[int, meta]("video-0")
	require.NoError(t, r.Register(p))
	assert.Equal(t, ErrExists, errors.Cause(r.Register(New[int, meta]("video-0"))))

	got, ok := r.Lookup("video-0")
	assert.True(t, ok)
	assert.Same(t, p, got)

	_, ok = r.Lookup("video-1")
	assert.False(t, ok)
	_, err := r.Get("video-1")
	assert.Equal(t, ErrNotFound, errors.Cause(err))

	require.NoError(t, r.Register(New[int, meta]("audio-0")))
	assert.Equal(t, []string{"audio-0", "video-0"}, r.Names())

	assert.True(t, r.Remove("video-0"))
	assert.False(t, r.Remove("video-0"))
	assert.True(t, p.Closed())
	_, ok = r.Lookup("video-0")
	assert.False(t, ok)
}
