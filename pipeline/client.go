package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Client is a consumer's registration on a pipeline. Each client owns a
// condition variable bound to the pipeline mutex so NotifyAll can wake every
// consumer independently. Close must be called when the consumer stops; it is
// safe to defer and to call more than once.
type Client[T, P any] struct {
	id   string
	p    *Pipeline[T, P]
	cond *sync.Cond

	notified  bool
	faulted   bool
	cancelled bool
	closed    bool
}

// Register adds a client under id. Ids are unique per pipeline.
func (p *Pipeline[T, P]) Register(id string) (c *Client[T, P], err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		err = errors.Wrap(ErrClosed, p.name)
		return
	}
	if _, ok := p.clients[id]; ok {
		err = errors.Wrapf(ErrClientExists, "%s: %s", p.name, id)
		return
	}

	c = &Client[T, P]{
		id:   id,
		p:    p,
		cond: sync.NewCond(&p.mu),
	}
	p.clients[id] = c
	return
}

// Unregister drops the client registered under id, waking it if it waits.
func (p *Pipeline[T, P]) Unregister(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unregisterLocked(id)
}

func (p *Pipeline[T, P]) unregisterLocked(id string) {
	c, ok := p.clients[id]
	if !ok {
		return
	}
	delete(p.clients, id)
	c.closed = true
	c.cond.Broadcast()
}

func (c *Client[T, P]) ID() string {
	return c.id
}

func (c *Client[T, P]) Pipeline() *Pipeline[T, P] {
	return c.p
}

func (c *Client[T, P]) Close() {
	c.p.mu.Lock()
	if !c.closed {
		c.p.unregisterLocked(c.id)
	}
	c.p.mu.Unlock()
}

func (c *Client[T, P]) errLocked(ctx context.Context) error {
	if c.cancelled {
		if err := ctx.Err(); err != nil {
			return err
		}
		// left over from an earlier ctx
		c.cancelled = false
	}
	if c.closed || c.p.closed {
		return errors.Wrap(ErrClosed, c.p.name)
	}
	return nil
}

func (c *Client[T, P]) watch(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		c.p.mu.Lock()
		c.cancelled = true
		c.cond.Broadcast()
		c.p.mu.Unlock()
	})
}

// Wait blocks until the producer notifies this client, the client or the
// pipeline is closed, or ctx is done.
func (c *Client[T, P]) Wait(ctx context.Context) error {
	stop := c.watch(ctx)
	defer stop()

	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	for !c.notified {
		if err := c.errLocked(ctx); err != nil {
			return err
		}
		if c.faulted {
			c.faulted = false
			return errors.Wrap(ErrUnexpectedEmpty, c.p.name)
		}
		c.cond.Wait()
	}
	c.notified = false
	return nil
}

// Next blocks until a filled slot is available and takes it, re-testing the
// queue after every wakeup. A producer fault reported by NotifyAll while the
// queue is empty ends the wait with ErrUnexpectedEmpty.
func (c *Client[T, P]) Next(ctx context.Context) (s *Slot[T], err error) {
	stop := c.watch(ctx)
	defer stop()

	p := c.p
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if err = c.errLocked(ctx); err != nil {
			return
		}
		if s = p.takeLocked(); s != nil {
			c.notified = false
			return
		}
		if c.faulted {
			c.faulted = false
			err = errors.Wrapf(ErrUnexpectedEmpty, "%s: data=%d buf=%d", p.name, len(p.filled), len(p.slots))
			return
		}
		c.notified = false
		c.cond.Wait()
	}
}
