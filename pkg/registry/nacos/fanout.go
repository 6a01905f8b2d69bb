package nacos

import (
	"context"
	"sync"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/fitframework/nacos-registry-adapter/pkg/fitable"
)

// serviceChangedTask is one unit of push-notification work: a subscription
// callback fired on the Bridge goroutine and must be offloaded immediately
// so it doesn't block further registry calls (spec.md §5).
type serviceChangedTask struct {
	fitable            fitable.Fitable
	workerID           string
	callbackFitableID  string
}

// FanoutPool is the bounded worker pool (default size 10, spec.md §5,
// SPEC_FULL §4.G) that turns on_service_changed callbacks into
// query_fitable_addresses calls without blocking the Async Runtime
// Bridge's single goroutine. Its Start/Stop lifecycle follows
// internal/job.TickerJob: a stopCh closed exactly once, a WaitGroup that
// lets in-flight callbacks drain before Stop returns.
type FanoutPool struct {
	size    int
	handler func(ctx context.Context, task serviceChangedTask)
	log     *log.Helper

	tasks    chan serviceChangedTask
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFanoutPool constructs a pool of the given size. handler is invoked on
// a pool worker goroutine for every submitted task.
func NewFanoutPool(size int, handler func(ctx context.Context, task serviceChangedTask), logger log.Logger) *FanoutPool {
	if size <= 0 {
		size = DefaultCallbackPoolSize
	}
	return &FanoutPool{
		size:    size,
		handler: handler,
		log:     log.NewHelper(logger),
		tasks:   make(chan serviceChangedTask, size*4),
		stopCh:  make(chan struct{}),
	}
}

// Start implements transport.Server: it spins up size worker goroutines and
// blocks until ctx is cancelled or Stop is called.
func (p *FanoutPool) Start(ctx context.Context) error {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.log.Infof("fan-out pool started with %d workers", p.size)

	select {
	case <-ctx.Done():
		p.wg.Wait()
		return ctx.Err()
	case <-p.stopCh:
		p.wg.Wait()
		return nil
	}
}

func (p *FanoutPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			p.handler(ctx, t)
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		}
	}
}

// Stop implements transport.Server. Safe to call multiple times. It returns
// once every worker has finished its in-flight handler and exited.
func (p *FanoutPool) Stop(_ context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	return nil
}

// Submit enqueues a task without blocking the caller (the Bridge
// goroutine). If the pool's queue is saturated the task is dropped and
// logged rather than backing up the caller.
func (p *FanoutPool) Submit(task serviceChangedTask) {
	select {
	case p.tasks <- task:
	default:
		p.log.Warnf("fan-out pool saturated, dropping service-changed event for %+v (callback id %q)", task.fitable, task.callbackFitableID)
	}
}
