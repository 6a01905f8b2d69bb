package job

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport"
	"github.com/google/wire"

	"github.com/fitframework/nacos-registry-adapter/pkg/registry/nacos"
)

// bridgeServer adapts *nacos.Bridge's lazy-start lifecycle to
// transport.Server so kratos.App drives its shutdown the same way it
// drives the gRPC/HTTP listeners.
type bridgeServer struct {
	bridge *nacos.Bridge
}

// NewBridgeServer wraps a Bridge for kratos.App lifecycle management.
func NewBridgeServer(bridge *nacos.Bridge) *bridgeServer {
	return &bridgeServer{bridge: bridge}
}

func (s *bridgeServer) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *bridgeServer) Stop(context.Context) error {
	s.bridge.Stop()
	return nil
}

// Registry holds all background jobs for Kratos lifecycle management: the
// Async Runtime Bridge, the push fan-out pool, and the subscription
// reconciler all need Start/Stop hooks driven by the kratos.App lifecycle.
type Registry struct {
	Bridge     *bridgeServer
	Pool       transport.Server
	Reconciler *ReconciliationJob
}

// Servers returns all jobs as a transport.Server slice for kratos.Server().
func (r *Registry) Servers() []transport.Server {
	servers := make([]transport.Server, 0, 3)
	if r.Bridge != nil {
		servers = append(servers, r.Bridge)
	}
	if r.Pool != nil {
		servers = append(servers, r.Pool)
	}
	if r.Reconciler != nil {
		servers = append(servers, r.Reconciler)
	}
	return servers
}

// ProviderSet is the job providers.
var ProviderSet = wire.NewSet(
	wire.Struct(new(Registry), "*"),
)
