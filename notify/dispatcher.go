package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// DispatcherConfig tunes the async delivery loop.
type DispatcherConfig struct {
	// BufferSize bounds the in-flight queue. Values <= 0 mean 1.
	BufferSize int
	// DropIfFull makes Publish non-blocking: when the buffer is full the
	// notification is counted as dropped instead of stalling the caller.
	DropIfFull bool
}

// Dispatcher decouples notification producers from the sink. One goroutine
// drains the buffer; Close stops intake, drains what is queued, and waits
// for the loop to exit.
type Dispatcher struct {
	cfg       DispatcherConfig
	sink      Sink
	ch        chan Notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery loop. A nil sink is replaced with
// [NoOpSink].
func NewDispatcher(cfg DispatcherConfig, sink Sink) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Notification, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.ch:
			d.sink.Emit(context.Background(), n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.sink.Emit(context.Background(), n)
				default:
					return
				}
			}
		}
	}
}

// Publish queues a notification for delivery. After Close it is a no-op.
func (d *Dispatcher) Publish(ctx context.Context, n Notification) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- n:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- n:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops intake, drains queued notifications, and waits for the loop.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many notifications were discarded under DropIfFull.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
