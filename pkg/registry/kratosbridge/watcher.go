package kratosbridge

import (
	"context"
	"errors"

	"github.com/go-kratos/kratos/v2/registry"

	"github.com/fitframework/nacos-registry-adapter/pkg/fitable"
	"github.com/fitframework/nacos-registry-adapter/pkg/registry/nacos"
)

// errWatcherClosed is returned from Next once the underlying delivery
// channel has been closed by Unsubscribe.
var errWatcherClosed = errors.New("kratosbridge: watcher closed")

// watcher implements registry.Watcher over a Facade delivery channel. The
// first call to Next returns the snapshot Subscribe already fetched,
// without waiting for a registry-side change; subsequent calls block on the
// delivery channel.
type watcher struct {
	adapter     *Adapter
	fit         fitable.Fitable
	serviceName string

	events <-chan nacos.ChangeEvent
	ctx    context.Context
	cancel context.CancelFunc

	hasInitial bool
	initial    []*registry.ServiceInstance
}

// Next implements registry.Watcher.
func (w *watcher) Next() ([]*registry.ServiceInstance, error) {
	if w.hasInitial {
		w.hasInitial = false
		return w.initial, nil
	}

	select {
	case ev, ok := <-w.events:
		if !ok {
			return nil, errWatcherClosed
		}
		if ev.Err != nil {
			return nil, ev.Err
		}
		return toServiceInstances(w.serviceName, ev.Result), nil
	case <-w.ctx.Done():
		return nil, w.ctx.Err()
	}
}

// Stop implements registry.Watcher.
func (w *watcher) Stop() error {
	w.cancel()
	return w.adapter.facade.Unsubscribe(context.Background(), []fitable.Fitable{w.fit}, w.adapter.workerID, w.adapter.workerID)
}
