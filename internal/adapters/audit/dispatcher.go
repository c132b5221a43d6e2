// Package audit delivers session lifecycle events to log and archive sinks
// without blocking request handling.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

type Sink interface {
	Emit(ctx context.Context, event domain.AuditEvent)
}

// Flusher is implemented by sinks that batch events.
type Flusher interface {
	Flush(ctx context.Context) error
}

type Options struct {
	BufferSize int
	// DropIfFull discards events instead of blocking the caller when the
	// buffer is full.
	DropIfFull    bool
	FlushInterval time.Duration
	Logger        *slog.Logger
}

type Dispatcher struct {
	opts      Options
	sink      Sink
	ch        chan domain.AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ ports.AuditRecorder = (*Dispatcher)(nil)

func NewDispatcher(sink Sink, opts Options) *Dispatcher {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1
	}
	if sink == nil {
		sink = NoopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	d := &Dispatcher{
		opts: opts,
		sink: sink,
		ch:   make(chan domain.AuditEvent, opts.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	var tick <-chan time.Time
	if _, ok := d.sink.(Flusher); ok && d.opts.FlushInterval > 0 {
		ticker := time.NewTicker(d.opts.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-tick:
			d.flush()
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					d.flush()
					return
				}
			}
		}
	}
}

func (d *Dispatcher) flush() {
	f, ok := d.sink.(Flusher)
	if !ok {
		return
	}
	if err := f.Flush(context.Background()); err != nil {
		d.opts.Logger.Error("audit flush failed", slog.Any("error", err))
	}
}

func (d *Dispatcher) Emit(ctx context.Context, event domain.AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.opts.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops accepting events, drains the buffer and flushes the sink.
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

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
