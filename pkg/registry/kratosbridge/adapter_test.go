package kratosbridge

import (
	"context"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitframework/nacos-registry-adapter/pkg/registry/nacos"
	"github.com/fitframework/nacos-registry-adapter/pkg/registry/nacos/namingclientmock"
	gomock "go.uber.org/mock/gomock"
)

func newTestAdapter(t *testing.T, client nacos.NamingClient) *Adapter {
	t.Helper()
	bridge := nacos.NewBridge(func() (nacos.NamingClient, error) { return client, nil }, log.DefaultLogger)
	t.Cleanup(bridge.Stop)
	subs := nacos.NewSubscriptionRegistry()
	cfg := &nacos.Config{AsyncTimeout: time.Second, Weight: 1.0, IsEphemeral: true, HeartBeatInterval: 5000, HeartBeatTimeout: 15000}
	pool := nacos.NewFanoutPool(2, nil, log.DefaultLogger)
	facade := nacos.NewFacade(bridge, subs, pool, cfg, log.DefaultLogger)
	return NewAdapter(facade, "worker-1", log.DefaultLogger)
}

func TestAdapter_RegisterRejectsEmptyName(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newTestAdapter(t, namingclientmock.NewMockNamingClient(ctrl))

	err := a.Register(context.Background(), &registry.ServiceInstance{})
	require.ErrorIs(t, err, nacos.ErrServiceInstanceNameEmpty)
}

func TestAdapter_RegisterParsesEndpointsAndRegisters(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)
	client.EXPECT().RegisterInstance(gomock.Any()).Return(nil)

	a := newTestAdapter(t, client)
	err := a.Register(context.Background(), &registry.ServiceInstance{
		ID:        "i1",
		Name:      "svc1",
		Version:   "1.0",
		Endpoints: []string{"grpc://10.0.0.1:9090"},
	})
	require.NoError(t, err)
}

func TestAdapter_GetServiceReturnsEmptyWhenNoInstances(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)
	client.EXPECT().ListInstances(gomock.Any()).Return(nil, nil)

	a := newTestAdapter(t, client)
	instances, err := a.GetService(context.Background(), "svc1")
	require.NoError(t, err)
	assert.Empty(t, instances)
}
