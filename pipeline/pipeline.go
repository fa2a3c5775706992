// Package pipeline implements a named, fixed-capacity ring of reusable slots
// that hands data from one producer to any number of consumers.
//
// A producer takes a slot with AcquireSlot, fills it, hands it over with
// Publish and then wakes consumers with NotifyAll. Consumers register a
// Client, take filled slots oldest-first and give them back with
// ReleaseSlot. The producer never blocks: when every slot is filled the
// oldest unconsumed slot is reclaimed and its content is lost.
package pipeline

import (
	"sync"

	"github.com/pkg/errors"
)

const DefaultCapacity = 8

var (
	ErrClosed             = errors.New("pipeline: closed")
	ErrPoolInitialized    = errors.New("pipeline: pool already initialized")
	ErrPoolNotInitialized = errors.New("pipeline: pool not initialized")
	ErrExhausted          = errors.New("pipeline: every slot is checked out")
	ErrSlotState          = errors.New("pipeline: slot in wrong state")
	ErrUnexpectedEmpty    = errors.New("pipeline: woken with no filled slot")
	ErrClientExists       = errors.New("pipeline: client already registered")
)

type slotState int

const (
	slotFree slotState = iota
	slotFilled
	slotProducing
	slotConsuming
)

var slotStateString = map[slotState]string{
	slotFree:      "free",
	slotFilled:    "filled",
	slotProducing: "producing",
	slotConsuming: "consuming",
}

func (s slotState) String() string {
	return slotStateString[s]
}

// Slot is one reusable unit of the ring. Data is created once by InitPool and
// mutated in place on every reuse.
type Slot[T any] struct {
	Data T

	index int
	state slotState
}

func (s *Slot[T]) Index() int {
	return s.index
}

type Stats struct {
	Published uint64
	Taken     uint64
	Evicted   uint64
	Released  uint64
}

// Pipeline is the ring plus its bookkeeping. T is the slot payload and P the
// channel metadata carried alongside.
type Pipeline[T, P any] struct {
	name string

	mu      sync.Mutex
	slots   []*Slot[T]
	free    []int
	filled  []int
	clients map[string]*Client[T, P]
	closed  bool

	// publishes not yet followed by NotifyAll
	unnotified int

	priv    P
	hasPriv bool

	stats Stats
}

func New[T, P any](name string) *Pipeline[T, P] {
	return &Pipeline[T, P]{
		name:    name,
		clients: map[string]*Client[T, P]{},
	}
}

func (p *Pipeline[T, P]) Name() string {
	return p.name
}

// InitPool allocates capacity slots once; alloc builds the payload of slot i.
func (p *Pipeline[T, P]) InitPool(capacity int, alloc func(i int) (T, error)) (slots []*Slot[T], err error) {
	if capacity <= 0 {
		err = errors.Errorf("pipeline %s: invalid capacity %d", p.name, capacity)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.slots != nil {
		err = errors.Wrap(ErrPoolInitialized, p.name)
		return
	}

	slots = make([]*Slot[T], capacity)
	free := make([]int, capacity)
	for i := range slots {
		var data T
		if alloc != nil {
			if data, err = alloc(i); err != nil {
				err = errors.Wrapf(err, "pipeline %s: init slot %d", p.name, i)
				return nil, err
			}
		}
		slots[i] = &Slot[T]{Data: data, index: i}
		free[i] = i
	}

	p.slots = slots
	p.free = free
	p.filled = make([]int, 0, capacity)
	return
}

func (p *Pipeline[T, P]) SetPrivate(v P) {
	p.mu.Lock()
	p.priv = v
	p.hasPriv = true
	p.mu.Unlock()
}

func (p *Pipeline[T, P]) Private() (v P, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.priv, p.hasPriv
}

// AcquireSlot hands a writable slot to the producer. It prefers the free slot
// released longest ago; when none is free it reclaims the oldest filled slot.
func (p *Pipeline[T, P]) AcquireSlot() (s *Slot[T], err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.slots == nil {
		err = errors.Wrap(ErrPoolNotInitialized, p.name)
		return
	}
	if p.closed {
		err = errors.Wrap(ErrClosed, p.name)
		return
	}

	var idx int
	switch {
	case len(p.free) > 0:
		idx = p.free[0]
		p.free = p.free[1:]
	case len(p.filled) > 0:
		idx = p.filled[0]
		p.filled = p.filled[1:]
		p.stats.Evicted++
	default:
		err = errors.Wrap(ErrExhausted, p.name)
		return
	}

	s = p.slots[idx]
	s.state = slotProducing
	return
}

// Publish appends a producer-held slot to the filled queue. Callers wake
// consumers separately with NotifyAll.
func (p *Pipeline[T, P]) Publish(s *Slot[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkSlot(s, slotProducing); err != nil {
		return err
	}
	s.state = slotFilled
	p.filled = append(p.filled, s.index)
	p.unnotified++
	p.stats.Published++
	return nil
}

// NotifyAll wakes every registered client. A notification with nothing
// published since the previous one and nothing queued is a producer fault;
// waiting clients observe it as ErrUnexpectedEmpty.
func (p *Pipeline[T, P]) NotifyAll() {
	p.mu.Lock()
	fault := p.unnotified == 0 && len(p.filled) == 0
	p.unnotified = 0
	for _, c := range p.clients {
		if fault {
			c.faulted = true
		} else {
			c.notified = true
		}
		c.cond.Signal()
	}
	p.mu.Unlock()
}

// TryTakeFilled pops the oldest filled slot, or returns nil when none is ready.
func (p *Pipeline[T, P]) TryTakeFilled() *Slot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.takeLocked()
}

func (p *Pipeline[T, P]) takeLocked() *Slot[T] {
	if len(p.filled) == 0 {
		return nil
	}
	idx := p.filled[0]
	p.filled = p.filled[1:]
	s := p.slots[idx]
	s.state = slotConsuming
	p.stats.Taken++
	return s
}

// ReleaseSlot returns a consumed slot to the free list.
func (p *Pipeline[T, P]) ReleaseSlot(s *Slot[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkSlot(s, slotConsuming); err != nil {
		return err
	}
	s.state = slotFree
	p.free = append(p.free, s.index)
	p.stats.Released++
	return nil
}

// Discard gives a producer-held slot back without publishing it.
func (p *Pipeline[T, P]) Discard(s *Slot[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkSlot(s, slotProducing); err != nil {
		return err
	}
	s.state = slotFree
	p.free = append(p.free, s.index)
	return nil
}

func (p *Pipeline[T, P]) checkSlot(s *Slot[T], want slotState) error {
	if s == nil || s.index < 0 || s.index >= len(p.slots) || p.slots[s.index] != s {
		return errors.Wrapf(ErrSlotState, "%s: foreign slot", p.name)
	}
	if s.state != want {
		return errors.Wrapf(ErrSlotState, "%s: slot %d is %s, want %s", p.name, s.index, s.state, want)
	}
	return nil
}

// DataCount is the number of filled slots awaiting consumption.
func (p *Pipeline[T, P]) DataCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.filled)
}

// BufCount is the ring capacity.
func (p *Pipeline[T, P]) BufCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

func (p *Pipeline[T, P]) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

func (p *Pipeline[T, P]) ClientCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

func (p *Pipeline[T, P]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipeline[T, P]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close marks the pipeline dead and wakes every waiting client with ErrClosed.
func (p *Pipeline[T, P]) Close() {
	p.mu.Lock()
	p.closed = true
	for _, c := range p.clients {
		c.cond.Broadcast()
	}
	p.mu.Unlock()
}
