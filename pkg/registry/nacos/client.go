package nacos

import (
	"fmt"

	"github.com/nacos-group/nacos-sdk-go/clients"
	"github.com/nacos-group/nacos-sdk-go/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/common/constant"
	"github.com/nacos-group/nacos-sdk-go/model"
	"github.com/nacos-group/nacos-sdk-go/vo"
)

// RegisterInstanceParams is the register_instance async operation's
// parameter record (spec.md §6).
type RegisterInstanceParams struct {
	ServiceName string
	GroupName   string
	IP          string
	Port        uint64
	Weight      float64
	Ephemeral   bool
	Metadata    map[string]string
}

// DeregisterInstanceParams is the deregister_instance operation's
// parameter record.
type DeregisterInstanceParams struct {
	ServiceName string
	GroupName   string
	IP          string
	Port        uint64
}

// ListInstancesParams is the list_instances operation's parameter record.
type ListInstancesParams struct {
	ServiceName string
	GroupName   string
	HealthyOnly bool
}

// Instance is the registry's unit of registration as returned by
// list_instances.
type Instance struct {
	InstanceID string
	IP         string
	Port       uint64
	Weight     float64
	Healthy    bool
	Metadata   map[string]string
}

// SubscribeParams is the subscribe/unsubscribe operation's parameter
// record. Callback is invoked on every change of the watched service.
type SubscribeParams struct {
	ServiceName string
	GroupName   string
	Callback    func(instances []Instance, err error)
}

// ListServicesParams is the list_services operation's parameter record.
type ListServicesParams struct {
	NamespaceID string
	GroupName   string
	PageNo      uint32
	PageSize    uint32
}

// ServiceList is list_services' result.
type ServiceList struct {
	Services []string
}

// Subscription is the opaque handle Subscribe returns and Unsubscribe
// consumes. Implementations must hand back the exact object Subscribe
// produced: the registry client may match callbacks by reference, not by
// (service, group) alone.
type Subscription interface {
	serviceName() string
	groupName() string
}

// NamingClient is the narrow subset of the registry client's asynchronous
// operations this adapter needs (spec.md §6). It exists so the Async
// Runtime Bridge and Registry Facade depend on a small, mockable surface
// instead of the full nacos-sdk-go naming_client.INamingClient.
type NamingClient interface {
	RegisterInstance(params RegisterInstanceParams) error
	DeregisterInstance(params DeregisterInstanceParams) (bool, error)
	ListInstances(params ListInstancesParams) ([]Instance, error)
	Subscribe(params SubscribeParams) (Subscription, error)
	Unsubscribe(sub Subscription) error
	ListServices(params ListServicesParams) (ServiceList, error)
	Close() error
}

// fakeSubscription is an opaque Subscription handle for test doubles of
// NamingClient. Production code always gets its handle from
// sdkNamingClient.Subscribe.
type fakeSubscription struct{ service, group string }

func (s fakeSubscription) serviceName() string { return s.service }
func (s fakeSubscription) groupName() string   { return s.group }

// NewSubscription constructs a Subscription handle for use in tests of
// components built on NamingClient.
func NewSubscription(serviceName, groupName string) Subscription {
	return fakeSubscription{service: serviceName, group: groupName}
}

// sdkNamingClient adapts nacos-sdk-go's naming_client.INamingClient to
// NamingClient.
type sdkNamingClient struct {
	cli naming_client.INamingClient
}

// NewSDKNamingClient wraps a real nacos-sdk-go naming client.
func NewSDKNamingClient(cli naming_client.INamingClient) NamingClient {
	return &sdkNamingClient{cli: cli}
}

// NewNamingClient builds a naming_client.INamingClient from cfg (server
// addresses, namespace and credentials), mirroring the teacher's
// NewNacosNamingClient, then wraps it.
func NewNamingClient(cfg *Config) (NamingClient, error) {
	serverConfigs := make([]constant.ServerConfig, 0, len(cfg.ServerAddrs))
	for _, addr := range cfg.ServerAddrs {
		serverConfigs = append(serverConfigs, constant.ServerConfig{
			IpAddr: addr.IP,
			Port:   addr.Port,
		})
	}

	clientConfig := &constant.ClientConfig{
		NamespaceId:         cfg.NamespaceID,
		NotLoadCacheAtStart: true,
		Username:            cfg.Username,
		Password:            cfg.Password,
		AccessKey:           cfg.AccessKey,
		SecretKey:           cfg.SecretKey,
	}

	cli, err := clients.NewNamingClient(
		vo.NacosClientParam{
			ClientConfig:  clientConfig,
			ServerConfigs: serverConfigs,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("nacos: failed to build naming client: %w", err)
	}
	return NewSDKNamingClient(cli), nil
}

func (c *sdkNamingClient) RegisterInstance(p RegisterInstanceParams) error {
	_, err := c.cli.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          p.IP,
		Port:        p.Port,
		ServiceName: p.ServiceName,
		GroupName:   p.GroupName,
		Weight:      p.Weight,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   p.Ephemeral,
		Metadata:    p.Metadata,
	})
	return err
}

func (c *sdkNamingClient) DeregisterInstance(p DeregisterInstanceParams) (bool, error) {
	return c.cli.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          p.IP,
		Port:        p.Port,
		ServiceName: p.ServiceName,
		GroupName:   p.GroupName,
		Ephemeral:   true,
	})
}

func (c *sdkNamingClient) ListInstances(p ListInstancesParams) ([]Instance, error) {
	res, err := c.cli.SelectInstances(vo.SelectInstancesParam{
		ServiceName: p.ServiceName,
		GroupName:   p.GroupName,
		HealthyOnly: p.HealthyOnly,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Instance, 0, len(res))
	for _, in := range res {
		out = append(out, Instance{
			InstanceID: in.InstanceId,
			IP:         in.Ip,
			Port:       in.Port,
			Weight:     in.Weight,
			Healthy:    in.Healthy,
			Metadata:   in.Metadata,
		})
	}
	return out, nil
}

type sdkSubscription struct {
	param *vo.SubscribeParam
}

func (s *sdkSubscription) serviceName() string { return s.param.ServiceName }
func (s *sdkSubscription) groupName() string   { return s.param.GroupName }

func (c *sdkNamingClient) Subscribe(p SubscribeParams) (Subscription, error) {
	param := &vo.SubscribeParam{
		ServiceName: p.ServiceName,
		GroupName:   p.GroupName,
		SubscribeCallback: func(services []model.Instance, err error) {
			if err != nil {
				p.Callback(nil, err)
				return
			}
			out := make([]Instance, 0, len(services))
			for _, in := range services {
				out = append(out, Instance{
					InstanceID: in.InstanceId,
					IP:         in.Ip,
					Port:       in.Port,
					Weight:     in.Weight,
					Healthy:    in.Healthy,
					Metadata:   in.Metadata,
				})
			}
			p.Callback(out, nil)
		},
	}
	if err := c.cli.Subscribe(param); err != nil {
		return nil, err
	}
	return &sdkSubscription{param: param}, nil
}

func (c *sdkNamingClient) Unsubscribe(sub Subscription) error {
	s, ok := sub.(*sdkSubscription)
	if !ok {
		return fmt.Errorf("nacos: unsubscribe called with a subscription handle from a different client")
	}
	return c.cli.Unsubscribe(s.param)
}

func (c *sdkNamingClient) ListServices(p ListServicesParams) (ServiceList, error) {
	res, err := c.cli.GetAllServicesInfo(vo.GetAllServiceInfoParam{
		NameSpace: p.NamespaceID,
		GroupName: p.GroupName,
		PageNo:    p.PageNo,
		PageSize:  p.PageSize,
	})
	if err != nil {
		return ServiceList{}, err
	}
	return ServiceList{Services: res.Doms}, nil
}

func (c *sdkNamingClient) Close() error {
	c.cli.CloseClient()
	return nil
}
