package nacos

import (
	"context"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/fitframework/nacos-registry-adapter/pkg/fitable"
	"github.com/fitframework/nacos-registry-adapter/pkg/registry/nacos/namingclientmock"
)

func newTestFacade(t *testing.T, client NamingClient) (*Facade, *SubscriptionRegistry) {
	t.Helper()
	bridge := NewBridge(func() (NamingClient, error) { return client, nil }, log.DefaultLogger)
	t.Cleanup(bridge.Stop)

	subs := NewSubscriptionRegistry()
	cfg := &Config{AsyncTimeout: time.Second, Weight: 1.0, IsEphemeral: true, HeartBeatInterval: 5000, HeartBeatTimeout: 15000}
	pool := NewFanoutPool(2, func(context.Context, serviceChangedTask) {}, log.DefaultLogger)
	return NewFacade(bridge, subs, pool, cfg, log.DefaultLogger), subs
}

func testFitable() fitable.Fitable {
	return fitable.Fitable{GenericableID: "g1", GenericableVersion: "1.0", FitableID: "f1", FitableVersion: "2.0"}
}

func TestFacade_RegisterBuildsAndRegistersOneInstancePerEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)

	client.EXPECT().RegisterInstance(gomock.Any()).Return(nil).Times(2)

	f, _ := newTestFacade(t, client)
	worker := fitable.Worker{
		ID: "w1",
		Addresses: []fitable.Address{
			{Host: "10.0.0.1", Endpoints: []fitable.Endpoint{
				{Port: 8080, Protocol: fitable.ProtocolHTTP},
				{Port: 9090, Protocol: fitable.ProtocolGRPC},
			}},
		},
	}
	meta := fitable.FitableMeta{Fitable: testFitable()}

	err := f.Register(context.Background(), []fitable.FitableMeta{meta}, worker, fitable.Application{Name: "app1"})
	require.NoError(t, err)
}

func TestFacade_RegisterStopsOnFirstFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)
	client.EXPECT().RegisterInstance(gomock.Any()).Return(assertErr).Times(1)

	f, _ := newTestFacade(t, client)
	worker := fitable.Worker{
		ID: "w1",
		Addresses: []fitable.Address{
			{Host: "10.0.0.1", Endpoints: []fitable.Endpoint{
				{Port: 8080, Protocol: fitable.ProtocolHTTP},
				{Port: 9090, Protocol: fitable.ProtocolGRPC},
			}},
		},
	}
	meta := fitable.FitableMeta{Fitable: testFitable()}

	err := f.Register(context.Background(), []fitable.FitableMeta{meta}, worker, fitable.Application{})
	require.ErrorIs(t, err, assertErr)
}

func TestFacade_UnregisterSkipsUndecodableAndMatchesByWorkerID(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)

	workerJSON, err := fitable.EncodeWorker(fitable.Worker{ID: "target"})
	require.NoError(t, err)
	otherJSON, err := fitable.EncodeWorker(fitable.Worker{ID: "other"})
	require.NoError(t, err)

	client.EXPECT().ListInstances(gomock.Any()).Return([]Instance{
		{IP: "10.0.0.1", Port: 1, Metadata: map[string]string{fitable.MetadataKeyWorker: workerJSON}},
		{IP: "10.0.0.2", Port: 2, Metadata: map[string]string{fitable.MetadataKeyWorker: otherJSON}},
		{IP: "10.0.0.3", Port: 3, Metadata: map[string]string{}},
	}, nil)
	client.EXPECT().DeregisterInstance(DeregisterInstanceParams{ServiceName: fitable.ServiceName(testFitable()), GroupName: fitable.GroupName(testFitable()), IP: "10.0.0.1", Port: 1}).Return(true, nil)

	f, _ := newTestFacade(t, client)
	err = f.Unregister(context.Background(), []fitable.Fitable{testFitable()}, "target")
	require.NoError(t, err)
}

func TestFacade_QueryFitableAddressesGroupsByApplicationAndDedupsWorkers(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)

	app := fitable.Application{Name: "app1", NameVersion: "1.0"}
	appJSON, err := fitable.EncodeApplication(app)
	require.NoError(t, err)
	worker := fitable.Worker{ID: "w1"}
	workerJSON, err := fitable.EncodeWorker(worker)
	require.NoError(t, err)
	metaJSON, err := fitable.EncodeFitableMeta(fitable.FitableMeta{Fitable: testFitable(), Formats: []uint8{fitable.FormatJSON}})
	require.NoError(t, err)

	md := map[string]string{
		fitable.MetadataKeyApplication: appJSON,
		fitable.MetadataKeyWorker:      workerJSON,
		fitable.MetadataKeyFitableMeta: metaJSON,
	}
	client.EXPECT().ListInstances(gomock.Any()).Return([]Instance{
		{IP: "10.0.0.1", Port: 1, Metadata: md},
		{IP: "10.0.0.2", Port: 2, Metadata: md}, // same worker content, must dedup
	}, nil)

	f, _ := newTestFacade(t, client)
	results, err := f.QueryFitableAddresses(context.Background(), []fitable.Fitable{testFitable()}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].ApplicationInstances, 1)
	assert.Len(t, results[0].ApplicationInstances[0].Workers, 1)
	assert.Equal(t, app, results[0].ApplicationInstances[0].Application)
}

func TestFacade_SubscribeIsIdempotentForConcurrentCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)

	client.EXPECT().ListInstances(gomock.Any()).Return(nil, nil).AnyTimes()
	client.EXPECT().Subscribe(gomock.Any()).Return(NewSubscription("f1::2.0", "g1::1.0"), nil).Times(1)

	f, subs := newTestFacade(t, client)
	fit := testFitable()

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			_, err := f.Subscribe(context.Background(), []fitable.Fitable{fit}, "w1", "cb1")
			if err != nil {
				t.Errorf("Subscribe returned error: %v", err)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	key := fitable.SubscriptionKey(fitable.GroupName(fit), fitable.ServiceName(fit))
	if !subs.Has(key) {
		t.Fatal("expected subscription to be present after concurrent subscribes")
	}
}

func TestFacade_UnsubscribeMissingEntryIsNotAnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)

	f, _ := newTestFacade(t, client)
	err := f.Unsubscribe(context.Background(), []fitable.Fitable{testFitable()}, "w1", "cb1")
	require.NoError(t, err)
}

func TestFacade_QueryFitableMetasPagesAndAccumulatesEnvironments(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)

	g := fitable.Genericable{GenericableID: "g1", GenericableVersion: "1.0"}
	metaJSON, err := fitable.EncodeFitableMeta(fitable.FitableMeta{Fitable: testFitable()})
	require.NoError(t, err)
	w1, err := fitable.EncodeWorker(fitable.Worker{ID: "w1", Environment: "prod"})
	require.NoError(t, err)
	w2, err := fitable.EncodeWorker(fitable.Worker{ID: "w2", Environment: "staging"})
	require.NoError(t, err)

	client.EXPECT().ListServices(gomock.Any()).Return(ServiceList{Services: []string{"f1::2.0"}}, nil)
	client.EXPECT().ListInstances(gomock.Any()).Return([]Instance{
		{Metadata: map[string]string{fitable.MetadataKeyFitableMeta: metaJSON, fitable.MetadataKeyWorker: w1}},
		{Metadata: map[string]string{fitable.MetadataKeyFitableMeta: metaJSON, fitable.MetadataKeyWorker: w2}},
	}, nil)

	f, _ := newTestFacade(t, client)
	results, err := f.QueryFitableMetas(context.Background(), []fitable.Genericable{g})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ElementsMatch(t, []string{"prod", "staging"}, results[0].Environments)
}

// newTestFacadeWithPool wires the fan-out pool to facade.Deliver and starts
// it, the same SetPool sequence cmd/server's wireApp uses to break the
// Facade/FanoutPool constructor cycle. newTestFacade above wires a no-op
// handler instead, which is enough for the operations that never submit to
// the pool, but the push-delivery path needs the real one.
func newTestFacadeWithPool(t *testing.T, client NamingClient) *Facade {
	t.Helper()
	bridge := NewBridge(func() (NamingClient, error) { return client, nil }, log.DefaultLogger)
	t.Cleanup(bridge.Stop)

	subs := NewSubscriptionRegistry()
	cfg := &Config{AsyncTimeout: time.Second, Weight: 1.0, IsEphemeral: true, HeartBeatInterval: 5000, HeartBeatTimeout: 15000}
	f := NewFacade(bridge, subs, nil, cfg, log.DefaultLogger)
	pool := NewFanoutPool(2, f.Deliver, log.DefaultLogger)
	f.SetPool(pool)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return f
}

func TestFacade_SubscribeCallbackDeliversChangeEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)

	client.EXPECT().ListInstances(gomock.Any()).Return(nil, nil).Times(1)
	client.EXPECT().ListInstances(gomock.Any()).Return([]Instance{
		{IP: "10.0.0.9", Port: 9090, Metadata: map[string]string{}},
	}, nil).Times(1)

	var captured SubscribeParams
	client.EXPECT().Subscribe(gomock.Any()).DoAndReturn(func(p SubscribeParams) (Subscription, error) {
		captured = p
		return NewSubscription(p.ServiceName, p.GroupName), nil
	}).Times(1)

	f := newTestFacadeWithPool(t, client)
	fit := testFitable()

	_, err := f.Subscribe(context.Background(), []fitable.Fitable{fit}, "w1", "cb1")
	require.NoError(t, err)

	events, ok := f.Changes(fit)
	require.True(t, ok)

	captured.Callback([]Instance{{IP: "10.0.0.9", Port: 9090}}, nil)

	select {
	case ev := <-events:
		assert.NoError(t, ev.Err)
		assert.Equal(t, fit, ev.Fitable)
		assert.Len(t, ev.Result.ApplicationInstances, 1)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a change event to reach the delivery channel")
	}
}

func TestFacade_SubscribeCallbackErrorIsLoggedNotDelivered(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)

	client.EXPECT().ListInstances(gomock.Any()).Return(nil, nil).AnyTimes()

	var captured SubscribeParams
	client.EXPECT().Subscribe(gomock.Any()).DoAndReturn(func(p SubscribeParams) (Subscription, error) {
		captured = p
		return NewSubscription(p.ServiceName, p.GroupName), nil
	}).Times(1)

	f := newTestFacadeWithPool(t, client)
	fit := testFitable()

	_, err := f.Subscribe(context.Background(), []fitable.Fitable{fit}, "w1", "cb1")
	require.NoError(t, err)

	events, ok := f.Changes(fit)
	require.True(t, ok)

	captured.Callback(nil, assertErr)

	select {
	case ev := <-events:
		t.Fatalf("expected no delivery on a callback error, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFacade_ReconcileRepublishesActiveSubscriptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := namingclientmock.NewMockNamingClient(ctrl)

	client.EXPECT().ListInstances(gomock.Any()).Return(nil, nil).Times(1)
	client.EXPECT().Subscribe(gomock.Any()).Return(NewSubscription("f1::2.0", "g1::1.0"), nil).Times(1)
	client.EXPECT().ListInstances(gomock.Any()).Return([]Instance{
		{IP: "10.0.0.9", Port: 9090, Metadata: map[string]string{}},
	}, nil).Times(1)

	f, _ := newTestFacade(t, client)
	fit := testFitable()

	_, err := f.Subscribe(context.Background(), []fitable.Fitable{fit}, "w1", "cb1")
	require.NoError(t, err)

	events, ok := f.Changes(fit)
	require.True(t, ok)

	f.Reconcile(context.Background())

	select {
	case ev := <-events:
		assert.NoError(t, ev.Err)
		assert.Len(t, ev.Result.ApplicationInstances, 1)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Reconcile to republish the active subscription")
	}
}

var assertErr = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
