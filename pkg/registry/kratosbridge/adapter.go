// Package kratosbridge adapts the Registry Facade to go-kratos/kratos's
// registry.Registrar and registry.Discovery interfaces, so a kratos app can
// use the Fitable registry adapter as its transport registry without
// talking to the Facade's Fitable-shaped API directly.
package kratosbridge

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/registry"

	"github.com/fitframework/nacos-registry-adapter/pkg/fitable"
	"github.com/fitframework/nacos-registry-adapter/pkg/registry/nacos"
)

var (
	_ registry.Registrar = (*Adapter)(nil)
	_ registry.Discovery = (*Adapter)(nil)
)

// defaultVersion is substituted for the Genericable/Fitable version half of
// the synthetic Fitable this adapter builds from a kratos ServiceInstance,
// which carries no Genericable identity of its own (DESIGN.md Open
// Question resolution 3).
const defaultVersion = "1.0.0"

// Adapter wraps a *nacos.Facade to present it as a kratos registrar and
// discovery source. It is a demo-process convenience: code that already
// works in terms of Fitable/Genericable should call the Facade directly.
type Adapter struct {
	facade   *nacos.Facade
	workerID string
	log      *log.Helper
}

// NewAdapter constructs an Adapter. workerID identifies the local process
// for unregister's worker-id match and is forwarded as callback_fitable_id
// on subscribe.
func NewAdapter(facade *nacos.Facade, workerID string, logger log.Logger) *Adapter {
	return &Adapter{facade: facade, workerID: workerID, log: log.NewHelper(logger)}
}

// syntheticFitable builds the Fitable identity this adapter publishes a
// kratos ServiceInstance under.
func syntheticFitable(name, version string) fitable.Fitable {
	if version == "" {
		version = defaultVersion
	}
	return fitable.Fitable{
		GenericableID:      name,
		GenericableVersion: defaultVersion,
		FitableID:          name,
		FitableVersion:     version,
	}
}

// Register implements registry.Registrar.
func (a *Adapter) Register(ctx context.Context, si *registry.ServiceInstance) error {
	if si.Name == "" {
		return nacos.ErrServiceInstanceNameEmpty
	}

	addresses, err := endpointsToAddress(si.Endpoints)
	if err != nil {
		return err
	}

	worker := fitable.Worker{
		Addresses:   []fitable.Address{addresses},
		ID:          si.ID,
		Environment: si.Metadata["environment"],
		Extensions:  si.Metadata,
	}
	application := fitable.Application{Name: si.Name, NameVersion: si.Version}
	fit := syntheticFitable(si.Name, si.Version)
	meta := fitable.FitableMeta{Fitable: fit, Formats: []uint8{fitable.FormatJSON}}

	return a.facade.Register(ctx, []fitable.FitableMeta{meta}, worker, application)
}

// Deregister implements registry.Registrar.
func (a *Adapter) Deregister(ctx context.Context, si *registry.ServiceInstance) error {
	fit := syntheticFitable(si.Name, si.Version)
	return a.facade.Unregister(ctx, []fitable.Fitable{fit}, si.ID)
}

// GetService implements registry.Discovery. serviceName is the kratos
// ServiceInstance.Name used at Register time. The synthetic Fitable's
// version is not recoverable from serviceName alone, so the lookup uses
// defaultVersion: it finds instances registered with an empty Version or
// with Version defaultVersion; instances registered under any other Version
// are not returned.
func (a *Adapter) GetService(ctx context.Context, serviceName string) ([]*registry.ServiceInstance, error) {
	fit := syntheticFitable(serviceName, defaultVersion)
	results, err := a.facade.QueryFitableAddresses(ctx, []fitable.Fitable{fit}, a.workerID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return toServiceInstances(serviceName, results[0]), nil
}

// Watch implements registry.Discovery.
func (a *Adapter) Watch(ctx context.Context, serviceName string) (registry.Watcher, error) {
	fit := syntheticFitable(serviceName, defaultVersion)

	initial, err := a.facade.Subscribe(ctx, []fitable.Fitable{fit}, a.workerID, a.workerID)
	if err != nil {
		return nil, err
	}
	events, _ := a.facade.Changes(fit)

	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		adapter:     a,
		fit:         fit,
		serviceName: serviceName,
		events:      events,
		ctx:         wctx,
		cancel:      cancel,
		hasInitial:  true,
	}
	if len(initial) > 0 {
		w.initial = toServiceInstances(serviceName, initial[0])
	}
	return w, nil
}

// endpointsToAddress parses kratos's "scheme://host:port" endpoint strings
// into a single fitable.Address with one Endpoint per endpoint string. A
// scheme that is not a known protocol name is recorded as gRPC, and the
// Address takes the host of the last endpoint.
func endpointsToAddress(endpoints []string) (fitable.Address, error) {
	var host string
	eps := make([]fitable.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		u, err := url.Parse(e)
		if err != nil {
			return fitable.Address{}, err
		}
		h, portStr, err := net.SplitHostPort(u.Host)
		if err != nil {
			return fitable.Address{}, err
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return fitable.Address{}, nacos.ErrInvalidPort
		}
		proto, ok := fitable.ProtocolByName(u.Scheme)
		if !ok {
			proto = fitable.ProtocolGRPC
		}
		host = h
		eps = append(eps, fitable.Endpoint{Port: uint16(port), Protocol: proto})
	}
	return fitable.Address{Host: host, Endpoints: eps}, nil
}

// toServiceInstances flattens a FitableAddressInstance back into kratos
// ServiceInstances, one per worker.
func toServiceInstances(serviceName string, result fitable.FitableAddressInstance) []*registry.ServiceInstance {
	var out []*registry.ServiceInstance
	for _, appInstance := range result.ApplicationInstances {
		for _, w := range appInstance.Workers {
			endpoints := make([]string, 0)
			for _, addr := range w.Addresses {
				for _, ep := range addr.Endpoints {
					scheme, ok := fitable.ProtocolName(ep.Protocol)
					if !ok {
						continue
					}
					endpoints = append(endpoints, scheme+"://"+net.JoinHostPort(addr.Host, strconv.FormatUint(uint64(ep.Port), 10)))
				}
			}
			out = append(out, &registry.ServiceInstance{
				ID:        w.ID,
				Name:      serviceName,
				Version:   appInstance.Application.NameVersion,
				Metadata:  w.Extensions,
				Endpoints: endpoints,
			})
		}
	}
	return out
}
