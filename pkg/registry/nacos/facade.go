package nacos

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/fitframework/nacos-registry-adapter/pkg/fitable"
)

// Dispatcher identifiers the framework binds the six operations to
// (spec.md §6). This repo does not implement the dispatcher itself — it
// only exports the identifiers the framework is expected to consume
// unchanged.
const (
	DispatcherRegisterFitService    = "REGISTER_FIT_SERVICE"
	DispatcherUnregisterFitService  = "UNREGISTER_FIT_SERVICE"
	DispatcherQueryFitService       = "QUERY_FIT_SERVICE"
	DispatcherSubscribeFitService   = "SUBSCRIBE_FIT_SERVICE"
	DispatcherUnsubscribeFitService = "UNSUBSCRIBE_FIT_SERVICE"
	DispatcherQueryFitableMetas     = "QUERY_FITABLE_METAS"
)

// ChangeEvent is one push-notification delivery: the materialized result of
// re-querying a Fitable after the registry reported a change, or the error
// that prevented materializing it.
type ChangeEvent struct {
	Fitable fitable.Fitable
	Result  fitable.FitableAddressInstance
	Err     error
}

// Facade is the Registry Facade (spec.md §4.E): the six public operations,
// each a composition of the Naming Translator, Instance Builder, Async
// Runtime Bridge and Subscription Registry.
type Facade struct {
	bridge *Bridge
	subs   *SubscriptionRegistry
	pool   *FanoutPool
	cfg    *Config
	log    *log.Helper

	mu         sync.Mutex
	deliveries map[string]chan ChangeEvent
	tasks      map[string]serviceChangedTask
}

// NewFacade wires the four subcomponents into a Facade. The caller owns
// starting/stopping the FanoutPool (it implements transport.Server).
func NewFacade(bridge *Bridge, subs *SubscriptionRegistry, pool *FanoutPool, cfg *Config, logger log.Logger) *Facade {
	f := &Facade{
		bridge:     bridge,
		subs:       subs,
		pool:       pool,
		cfg:        cfg,
		log:        log.NewHelper(logger),
		deliveries: make(map[string]chan ChangeEvent),
		tasks:      make(map[string]serviceChangedTask),
	}
	return f
}

// SetPool wires the fan-out pool after construction, breaking the
// constructor cycle between a Facade and a pool whose handler is the same
// Facade's Deliver method.
func (f *Facade) SetPool(pool *FanoutPool) {
	f.pool = pool
}

// isFatal reports whether err is a control-plane failure (bad config, the
// bridge itself down) rather than a per-item registry error. Only these
// propagate out of the batch-oriented operations (spec.md §7).
func isFatal(err error) bool {
	return errors.Is(err, ErrExecutorInitFailed) ||
		errors.Is(err, ErrExecutorStopped) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Register implements REGISTER_FIT_SERVICE (spec.md §4.E). For each meta it
// builds instances and registers them one by one; it re-raises the first
// failing registry error. Instances registered before a failure stay
// registered — no compensating deregister is attempted.
func (f *Facade) Register(ctx context.Context, metas []fitable.FitableMeta, worker fitable.Worker, application fitable.Application) error {
	buildOpts := fitable.BuildOptions{Weight: f.cfg.Weight, Ephemeral: f.cfg.IsEphemeral}

	for _, meta := range metas {
		descriptors, err := fitable.BuildInstances(f.log, worker, application, meta, buildOpts, f.cfg.HeartBeatInterval, f.cfg.HeartBeatTimeout)
		if err != nil {
			return fmt.Errorf("nacos: failed to build instances for %+v: %w", meta.Fitable, err)
		}

		service := fitable.ServiceName(meta.Fitable)
		group := fitable.GroupName(meta.Fitable)

		for _, d := range descriptors {
			_, err := f.bridge.Run(ctx, f.cfg.AsyncTimeout, func(client NamingClient) (interface{}, error) {
				return nil, client.RegisterInstance(RegisterInstanceParams{
					ServiceName: service,
					GroupName:   group,
					IP:          d.IP,
					Port:        uint64(d.Port),
					Weight:      d.Weight,
					Ephemeral:   d.Ephemeral,
					Metadata:    d.Metadata,
				})
			})
			if err != nil {
				f.log.Errorf("register_instance failed for %s/%s at %s:%d: %v", group, service, d.IP, d.Port, err)
				return err
			}
		}
	}
	return nil
}

// Unregister implements UNREGISTER_FIT_SERVICE. For each fitable, lists all
// healthy instances and deregisters every one whose decoded worker id
// matches workerID. Instances that fail to decode are skipped (they belong
// to no identifiable worker). Per-item errors are logged and do not stop
// the loop.
func (f *Facade) Unregister(ctx context.Context, fitables []fitable.Fitable, workerID string) error {
	for _, fit := range fitables {
		service := fitable.ServiceName(fit)
		group := fitable.GroupName(fit)

		raw, err := f.bridge.Run(ctx, f.cfg.AsyncTimeout, func(client NamingClient) (interface{}, error) {
			return client.ListInstances(ListInstancesParams{ServiceName: service, GroupName: group, HealthyOnly: true})
		})
		if err != nil {
			if isFatal(err) {
				return err
			}
			f.log.Errorf("list_instances failed for %s/%s: %v", group, service, err)
			continue
		}
		instances := raw.([]Instance)

		for _, inst := range instances {
			w, ok := fitable.TryDecodeWorker(inst.Metadata[fitable.MetadataKeyWorker])
			if !ok {
				continue
			}
			if w.ID != workerID {
				continue
			}
			_, err := f.bridge.Run(ctx, f.cfg.AsyncTimeout, func(client NamingClient) (interface{}, error) {
				return client.DeregisterInstance(DeregisterInstanceParams{
					ServiceName: service,
					GroupName:   group,
					IP:          inst.IP,
					Port:        inst.Port,
				})
			})
			if err != nil {
				if isFatal(err) {
					return err
				}
				f.log.Errorf("deregister_instance failed for %s/%s at %s:%d: %v", group, service, inst.IP, inst.Port, err)
			}
		}
	}
	return nil
}

// QueryFitableAddresses implements QUERY_FIT_SERVICE. workerID is forwarded
// for logging/per-caller filtering hooks only — it does not filter the
// result (spec.md §4.E).
func (f *Facade) QueryFitableAddresses(ctx context.Context, fitables []fitable.Fitable, workerID string) ([]fitable.FitableAddressInstance, error) {
	results := make([]fitable.FitableAddressInstance, 0, len(fitables))

	for _, fit := range fitables {
		service := fitable.ServiceName(fit)
		group := fitable.GroupName(fit)

		raw, err := f.bridge.Run(ctx, f.cfg.AsyncTimeout, func(client NamingClient) (interface{}, error) {
			return client.ListInstances(ListInstancesParams{ServiceName: service, GroupName: group, HealthyOnly: true})
		})
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			f.log.Errorf("list_instances failed for %s/%s (worker %s): %v", group, service, workerID, err)
			continue
		}
		instances := raw.([]Instance)
		if len(instances) == 0 {
			continue
		}

		appInstances := groupByApplication(f.log, instances)
		results = append(results, fitable.FitableAddressInstance{
			Fitable:              fit,
			ApplicationInstances: appInstances,
		})
	}
	return results, nil
}

// groupByApplication implements the by-application grouping and per-group
// worker set-dedup required by invariant 4 and scenario S4.
func groupByApplication(logger *log.Helper, instances []Instance) []fitable.ApplicationInstance {
	type group struct {
		application fitable.Application
		workers     []fitable.Worker
		formats     []uint8
	}

	order := make([]string, 0)
	groups := make(map[string]*group)

	for _, inst := range instances {
		app := fitable.DecodeApplication(logger, inst.Metadata[fitable.MetadataKeyApplication])
		key := app.Name + "::" + app.NameVersion

		g, ok := groups[key]
		if !ok {
			meta := fitable.DecodeFitableMeta(logger, inst.Metadata[fitable.MetadataKeyFitableMeta])
			g = &group{application: app, formats: meta.Formats}
			groups[key] = g
			order = append(order, key)
		}

		// extract_workers is a set operation (invariant 4): dedup by exact
		// decoded content, not just worker id.
		w := fitable.DecodeWorker(logger, inst.Metadata[fitable.MetadataKeyWorker])
		duplicate := false
		for _, existing := range g.workers {
			if existing.Equal(w) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		g.workers = append(g.workers, w)
	}

	out := make([]fitable.ApplicationInstance, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, fitable.ApplicationInstance{
			Workers:     g.workers,
			Application: g.application,
			Formats:     g.formats,
		})
	}
	return out
}

// Subscribe implements SUBSCRIBE_FIT_SERVICE. It returns the same result as
// QueryFitableAddresses and, for every fitable not already subscribed,
// installs a callback and issues a registry-level subscribe exactly once
// (invariant 2, scenario S5). callbackFitableID is opaque — forwarded to
// logs only (spec.md §9's documented resolution of that open question).
func (f *Facade) Subscribe(ctx context.Context, fitables []fitable.Fitable, workerID, callbackFitableID string) ([]fitable.FitableAddressInstance, error) {
	result, err := f.QueryFitableAddresses(ctx, fitables, workerID)
	if err != nil {
		return nil, err
	}

	for _, fit := range fitables {
		service := fitable.ServiceName(fit)
		group := fitable.GroupName(fit)
		key := fitable.SubscriptionKey(group, service)

		reserved := f.subs.InsertIfAbsent(key, nil)
		if !reserved {
			f.log.Infof("subscribe is a no-op: %s/%s already active (callback id %q)", group, service, callbackFitableID)
			continue
		}

		f.deliveryChannel(key)
		capturedFit, capturedWorkerID, capturedCallbackID := fit, workerID, callbackFitableID
		f.setTask(key, serviceChangedTask{fitable: capturedFit, workerID: capturedWorkerID, callbackFitableID: capturedCallbackID})

		sub, err := f.bridge.Run(ctx, f.cfg.AsyncTimeout, func(client NamingClient) (interface{}, error) {
			return client.Subscribe(SubscribeParams{
				ServiceName: service,
				GroupName:   group,
				Callback: func(instances []Instance, cbErr error) {
					if cbErr != nil {
						f.log.Errorf("subscribe callback error for %s/%s (callback id %q): %v", group, service, capturedCallbackID, cbErr)
						return
					}
					f.pool.Submit(serviceChangedTask{
						fitable:           capturedFit,
						workerID:          capturedWorkerID,
						callbackFitableID: capturedCallbackID,
					})
				},
			})
		})
		if err != nil {
			f.subs.Remove(key)
			f.closeDeliveryChannel(key)
			if isFatal(err) {
				return nil, err
			}
			f.log.Errorf("subscribe failed for %s/%s (callback id %q): %v", group, service, callbackFitableID, err)
			continue
		}
		f.subs.SetHandle(key, sub.(Subscription))
	}
	return result, nil
}

// Unsubscribe implements UNSUBSCRIBE_FIT_SERVICE. A missing entry is not an
// error.
func (f *Facade) Unsubscribe(ctx context.Context, fitables []fitable.Fitable, workerID, callbackFitableID string) error {
	for _, fit := range fitables {
		service := fitable.ServiceName(fit)
		group := fitable.GroupName(fit)
		key := fitable.SubscriptionKey(group, service)

		handle := f.subs.Remove(key)
		if handle == nil {
			continue
		}

		_, err := f.bridge.Run(ctx, f.cfg.AsyncTimeout, func(client NamingClient) (interface{}, error) {
			return nil, client.Unsubscribe(handle)
		})
		if err != nil {
			if isFatal(err) {
				return err
			}
			f.log.Errorf("unsubscribe failed for %s/%s (callback id %q): %v", group, service, callbackFitableID, err)
		}
		f.closeDeliveryChannel(key)
	}
	return nil
}

// QueryFitableMetas implements QUERY_FITABLE_METAS: for each genericable,
// lists its services, and for each service accumulates every distinct
// worker's environment into a set keyed by the service's decoded meta.
func (f *Facade) QueryFitableMetas(ctx context.Context, genericables []fitable.Genericable) ([]fitable.FitableMetaInstance, error) {
	type accumulator struct {
		meta fitable.FitableMeta
		envs map[string]struct{}
	}
	order := make([]string, 0)
	byMeta := make(map[string]*accumulator)

	for _, g := range genericables {
		group := fitable.GroupNameForGenericable(g)

		services, err := f.listAllServices(ctx, group)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			f.log.Errorf("list_services failed for group %s: %v", group, err)
			continue
		}

		for _, service := range services {
			raw, err := f.bridge.Run(ctx, f.cfg.AsyncTimeout, func(client NamingClient) (interface{}, error) {
				return client.ListInstances(ListInstancesParams{ServiceName: service, GroupName: group, HealthyOnly: true})
			})
			if err != nil {
				if isFatal(err) {
					return nil, err
				}
				f.log.Errorf("list_instances failed for %s/%s: %v", group, service, err)
				continue
			}
			instances := raw.([]Instance)
			if len(instances) == 0 {
				continue
			}

			meta := fitable.DecodeFitableMeta(f.log, instances[0].Metadata[fitable.MetadataKeyFitableMeta])
			metaKey, _ := fitable.EncodeFitableMeta(meta)

			acc, ok := byMeta[metaKey]
			if !ok {
				acc = &accumulator{meta: meta, envs: make(map[string]struct{})}
				byMeta[metaKey] = acc
				order = append(order, metaKey)
			}
			for _, inst := range instances {
				w := fitable.DecodeWorker(f.log, inst.Metadata[fitable.MetadataKeyWorker])
				acc.envs[w.Environment] = struct{}{}
			}
		}
	}

	out := make([]fitable.FitableMetaInstance, 0, len(order))
	for _, key := range order {
		acc := byMeta[key]
		envs := make([]string, 0, len(acc.envs))
		for e := range acc.envs {
			envs = append(envs, e)
		}
		out = append(out, fitable.FitableMetaInstance{Meta: acc.meta, Environments: envs})
	}
	return out, nil
}

// listAllServices pages through list_services until a page comes back
// empty or shorter than the page size.
func (f *Facade) listAllServices(ctx context.Context, group string) ([]string, error) {
	const pageSize = 200
	var all []string
	for page := uint32(1); ; page++ {
		raw, err := f.bridge.Run(ctx, f.cfg.AsyncTimeout, func(client NamingClient) (interface{}, error) {
			return client.ListServices(ListServicesParams{
				NamespaceID: f.cfg.NamespaceID,
				GroupName:   group,
				PageNo:      page,
				PageSize:    pageSize,
			})
		})
		if err != nil {
			return all, err
		}
		list := raw.(ServiceList)
		if len(list.Services) == 0 {
			break
		}
		all = append(all, list.Services...)
		if len(list.Services) < pageSize {
			break
		}
	}
	return all, nil
}

func (f *Facade) deliveryChannel(key string) chan ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.deliveries[key]
	if !ok {
		ch = make(chan ChangeEvent, 16)
		f.deliveries[key] = ch
	}
	return ch
}

func (f *Facade) closeDeliveryChannel(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.deliveries[key]; ok {
		close(ch)
		delete(f.deliveries, key)
	}
	delete(f.tasks, key)
}

func (f *Facade) setTask(key string, task serviceChangedTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[key] = task
}

// Changes returns the channel a subscriber should read push notifications
// from for the (group, service) pair derived from fit, if a subscription is
// active.
func (f *Facade) Changes(fit fitable.Fitable) (<-chan ChangeEvent, bool) {
	key := fitable.SubscriptionKey(fitable.GroupName(fit), fitable.ServiceName(fit))
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.deliveries[key]
	return ch, ok
}

// Reconcile re-queries every actively subscribed Fitable and republishes its
// current result on the matching delivery channel, exactly as a registry
// push callback would. internal/job.ReconciliationJob drives this on a
// fixed interval so a subscriber that missed a push (Deliver drops an event
// when its channel is full) still converges by the next tick.
func (f *Facade) Reconcile(ctx context.Context) {
	f.mu.Lock()
	tasks := make([]serviceChangedTask, 0, len(f.tasks))
	for _, t := range f.tasks {
		tasks = append(tasks, t)
	}
	f.mu.Unlock()

	for _, t := range tasks {
		f.Deliver(ctx, t)
	}
}

// Deliver re-queries fit on behalf of the fan-out pool and publishes the
// result to its delivery channel. It is the handler passed to NewFanoutPool
// by whoever wires the Facade together (see cmd/server).
func (f *Facade) Deliver(ctx context.Context, task serviceChangedTask) {
	result, err := f.QueryFitableAddresses(ctx, []fitable.Fitable{task.fitable}, task.workerID)
	key := fitable.SubscriptionKey(fitable.GroupName(task.fitable), fitable.ServiceName(task.fitable))

	f.mu.Lock()
	ch, ok := f.deliveries[key]
	f.mu.Unlock()
	if !ok {
		return
	}

	var event ChangeEvent
	event.Fitable = task.fitable
	if err != nil {
		event.Err = err
	} else if len(result) > 0 {
		event.Result = result[0]
	}

	select {
	case ch <- event:
	default:
		f.log.Warnf("delivery channel full for %s, dropping change event (callback id %q)", key, task.callbackFitableID)
	}
}
