package nacos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// bridgeTask is one unit of work submitted to the Bridge's single
// goroutine.
type bridgeTask struct {
	fn     func(client NamingClient) (interface{}, error)
	result chan bridgeResult
}

type bridgeResult struct {
	value interface{}
	err   error
}

// Bridge is the Async Runtime Bridge (spec.md §4.C). It owns exactly one
// background goroutine holding the NamingClient, started lazily on first
// use, and exposes a blocking, thread-safe Run to arbitrary caller
// goroutines. This is the Go-native collapse of the source's
// coroutine-scheduler design described in spec.md §9: one dedicated
// goroutine plus a channel-based submission primitive in place of a
// cooperative scheduler, with per-call deadlines taking the place of
// suspendable-operation semantics.
type Bridge struct {
	newClient        func() (NamingClient, error)
	log              *log.Helper
	readinessTimeout time.Duration

	mu      sync.Mutex
	started bool
	ready   chan struct{}
	tasks   chan bridgeTask
	stopCh  chan struct{}

	stopOnce sync.Once
	client   NamingClient
	initErr  error
}

// NewBridge constructs a Bridge. newClient is invoked exactly once, on the
// background goroutine, the first time Run is called.
func NewBridge(newClient func() (NamingClient, error), logger log.Logger) *Bridge {
	return &Bridge{
		newClient:        newClient,
		log:              log.NewHelper(logger),
		readinessTimeout: DefaultReadinessTimeout,
	}
}

// ensureStarted starts the background goroutine on first call. Safe to call
// concurrently from many caller goroutines; only the first call actually
// starts anything.
func (b *Bridge) ensureStarted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	b.ready = make(chan struct{})
	b.tasks = make(chan bridgeTask)
	b.stopCh = make(chan struct{})
	go b.loop(b.ready, b.tasks, b.stopCh)
}

// loop is the Bridge's single dedicated goroutine. It is a daemon: it never
// prevents process exit and runs until Stop is called.
func (b *Bridge) loop(ready chan struct{}, tasks chan bridgeTask, stopCh chan struct{}) {
	client, err := b.newClient()
	if err != nil {
		b.log.Errorf("registry client startup failed: %v", err)
		b.initErr = err
		close(ready)
		return
	}
	b.client = client
	close(ready)

	for {
		select {
		case t := <-tasks:
			v, err := t.fn(b.client)
			t.result <- bridgeResult{value: v, err: err}
		case <-stopCh:
			if err := b.client.Close(); err != nil {
				b.log.Errorf("failed to close registry client: %v", err)
			}
			return
		}
	}
}

// Run submits fn to the background goroutine and blocks the caller until it
// completes or timeout elapses. ctx cancellation also unblocks the caller;
// neither case cancels the underlying task, which runs to completion with
// its result discarded (the registry client has no cancellation contract).
func (b *Bridge) Run(ctx context.Context, timeout time.Duration, fn func(client NamingClient) (interface{}, error)) (interface{}, error) {
	b.ensureStarted()

	b.mu.Lock()
	ready, tasks, stopCh := b.ready, b.tasks, b.stopCh
	b.mu.Unlock()

	select {
	case <-ready:
	case <-time.After(b.readinessTimeout):
		return nil, ErrExecutorInitFailed
	}
	if b.initErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutorInitFailed, b.initErr)
	}

	resultCh := make(chan bridgeResult, 1)
	select {
	case tasks <- bridgeTask{fn: fn, result: resultCh}:
	case <-stopCh:
		return nil, ErrExecutorStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-resultCh:
		return res.value, res.err
	case <-time.After(timeout):
		return nil, ErrRegistryTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-stopCh:
		return nil, ErrExecutorStopped
	}
}

// Stop signals the background goroutine to shut down the registry client
// and exit. Safe to call multiple times or on a Bridge that was never
// started. Operations submitted after Stop fail with ErrExecutorStopped.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.started {
		// Never started: mark the Bridge as started-and-stopped without
		// constructing the client, so later Run calls see stopCh closed.
		b.started = true
		b.ready = make(chan struct{})
		close(b.ready)
		b.tasks = make(chan bridgeTask)
		b.stopCh = make(chan struct{})
	}
	stopCh := b.stopCh
	b.mu.Unlock()
	b.stopOnce.Do(func() { close(stopCh) })
}
