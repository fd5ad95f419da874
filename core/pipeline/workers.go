package pipeline

import (
	"context"
	"errors"
	"sync"

	"fleetsense/core/logger"
	"fleetsense/core/telemetry"
)

// ErrQueueFull is returned when a vehicle's worker queue is saturated. The
// ingress collaborator may retry; the pipeline never blocks indefinitely.
var ErrQueueFull = errors.New("pipeline: vehicle queue full")

// Pool fans incoming samples out to one worker per active vehicle stream,
// so a backlog on one vehicle never starves another while per-vehicle
// ordering is preserved.
type Pool struct {
	pipe      *Pipeline
	log       logger.Logger
	queueSize int

	mu      sync.Mutex
	ctx     context.Context
	workers map[string]chan telemetry.RawSample
	wg      sync.WaitGroup
	closed  bool
}

// NewPool creates a worker pool over the pipeline. queueSize bounds the
// per-vehicle backlog; zero means 16.
func NewPool(pipe *Pipeline, queueSize int, log logger.Logger) *Pool {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Pool{
		pipe:      pipe,
		log:       log,
		queueSize: queueSize,
		workers:   make(map[string]chan telemetry.RawSample),
	}
}

// Start binds the pool to a context. When the context ends the pool stops
// accepting samples and drains its workers.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	go func() {
		<-ctx.Done()
		p.Close()
	}()
}

// Submit enqueues a sample for its vehicle's worker, creating the worker on
// first use. It fails with ErrQueueFull instead of blocking.
func (p *Pool) Submit(raw telemetry.RawSample) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("pipeline: pool closed")
	}
	ch, ok := p.workers[raw.VehicleID]
	if !ok {
		ch = make(chan telemetry.RawSample, p.queueSize)
		p.workers[raw.VehicleID] = ch
		ctx := p.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		p.wg.Add(1)
		go p.run(ctx, raw.VehicleID, ch)
	}
	p.mu.Unlock()

	select {
	case ch <- raw:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) run(ctx context.Context, vehicleID string, ch <-chan telemetry.RawSample) {
	defer p.wg.Done()
	for raw := range ch {
		if _, err := p.pipe.Process(ctx, raw); err != nil && p.log != nil {
			p.log.Warnf("vehicle %s: %v", vehicleID, err)
		}
	}
}

// Close stops all workers after their queues drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, ch := range p.workers {
		close(ch)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
