package services_test

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opendut-carl/internal/application/services"
	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/resources"
)

func newManager(t *testing.T) *resources.Manager {
	t.Helper()
	m := resources.NewInMemory(logr.Discard())
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func newPeer(t *testing.T, name string) models.PeerDescriptor {
	t.Helper()
	peerName, err := models.NewPeerName(name)
	require.NoError(t, err)

	iface := models.NetworkInterfaceDescriptor{
		ID:            models.NewNetworkInterfaceID(),
		Name:          "eth0",
		Configuration: models.EthernetConfiguration(),
	}
	return models.PeerDescriptor{
		ID:   models.NewPeerID(),
		Name: peerName,
		Network: models.PeerNetworkDescriptor{
			Interfaces: []models.NetworkInterfaceDescriptor{iface},
		},
		Topology: models.Topology{
			Devices: []models.DeviceDescriptor{{
				ID:        models.NewDeviceID(),
				Name:      name + "-device",
				Interface: iface.ID,
			}},
			Accessories: []models.AccessoryDescriptor{{
				ID:   models.NewAccessoryID(),
				Name: name + "-accessory",
			}},
		},
		Executors: []models.ExecutorDescriptor{{
			ID:   models.NewExecutorID(),
			Kind: models.ExecutorKindExecutable,
		}},
	}
}

func TestPeerService_StoreAndGet(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	svc := services.NewPeerService(m)
	peer := newPeer(t, "peer-a")

	require.NoError(t, svc.StorePeerDescriptor(ctx, peer))

	got, err := svc.GetPeerDescriptor(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, peer, got)

	state, err := svc.GetPeerState(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NewPeerState(), state)

	device, ok, err := resources.Get(ctx, m, resources.DeviceDescriptors, peer.Topology.Devices[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, peer.Topology.Devices[0], device)

	configuration, err := svc.GetPeerConfiguration(ctx, peer.ID)
	require.NoError(t, err)
	require.Len(t, configuration.Executors, 1)
	assert.Equal(t, models.ParameterPresent, configuration.Executors[0].Target)

	peers, err := svc.ListPeerDescriptors(ctx)
	require.NoError(t, err)
	assert.Len(t, peers, 1)
}

func TestPeerService_StoreRejectsIllegalDescriptor(t *testing.T) {
	m := newManager(t)
	svc := services.NewPeerService(m)
	peer := newPeer(t, "peer-a")
	peer.Topology.Devices[0].Interface = models.NewNetworkInterfaceID()

	err := svc.StorePeerDescriptor(context.Background(), peer)
	assert.True(t, errors.Is(err, services.ErrIllegalPeerDescriptor))

	_, err = svc.GetPeerDescriptor(context.Background(), peer.ID)
	assert.True(t, errors.Is(err, services.ErrPeerNotFound))
}

func TestPeerService_StoreRejectsForeignTopology(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	svc := services.NewPeerService(m)
	owner := newPeer(t, "peer-a")
	require.NoError(t, svc.StorePeerDescriptor(ctx, owner))

	thief := newPeer(t, "peer-b")
	thief.Topology.Devices[0].ID = owner.Topology.Devices[0].ID
	err := svc.StorePeerDescriptor(ctx, thief)
	assert.True(t, errors.Is(err, services.ErrDeviceInUse))

	thief = newPeer(t, "peer-b")
	thief.Topology.Accessories[0].ID = owner.Topology.Accessories[0].ID
	err = svc.StorePeerDescriptor(ctx, thief)
	assert.True(t, errors.Is(err, services.ErrAccessoryInUse))

	_, err = svc.GetPeerDescriptor(ctx, thief.ID)
	assert.True(t, errors.Is(err, services.ErrPeerNotFound))
	device, ok, err := resources.Get(ctx, m, resources.DeviceDescriptors, owner.Topology.Devices[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "peer-a-device", device.Name)

	// re-storing the owner keeps its own topology
	require.NoError(t, svc.StorePeerDescriptor(ctx, owner))
}

func TestPeerService_UpdateDropsRemovedTopologyAndExecutors(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	svc := services.NewPeerService(m)
	peer := newPeer(t, "peer-a")
	require.NoError(t, svc.StorePeerDescriptor(ctx, peer))
	require.NoError(t, svc.MarkOnline(ctx, peer.ID, "10.0.0.1"))

	oldDevice := peer.Topology.Devices[0].ID
	oldAccessory := peer.Topology.Accessories[0].ID
	oldExecutor := peer.Executors[0].ID

	updated := peer.Clone()
	updated.Topology.Devices[0].ID = models.NewDeviceID()
	updated.Topology.Accessories = nil
	updated.Executors = nil
	require.NoError(t, svc.StorePeerDescriptor(ctx, updated))

	_, ok, err := resources.Get(ctx, m, resources.DeviceDescriptors, oldDevice)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = resources.Get(ctx, m, resources.AccessoryDescriptors, oldAccessory)
	require.NoError(t, err)
	assert.False(t, ok)

	configuration, err := svc.GetPeerConfiguration(ctx, peer.ID)
	require.NoError(t, err)
	require.Len(t, configuration.Executors, 1)
	assert.Equal(t, oldExecutor.UUID(), configuration.Executors[0].ID)
	assert.Equal(t, models.ParameterAbsent, configuration.Executors[0].Target)

	// the existing state survives a descriptor update
	state, err := svc.GetPeerState(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionOnline, state.Connection.Status)
}

func TestPeerService_MarkOnlineOffline(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	svc := services.NewPeerService(m)
	peer := newPeer(t, "peer-a")

	err := svc.MarkOnline(ctx, peer.ID, "10.0.0.1")
	assert.True(t, errors.Is(err, services.ErrPeerNotFound))

	require.NoError(t, svc.StorePeerDescriptor(ctx, peer))
	require.NoError(t, svc.MarkOnline(ctx, peer.ID, "10.0.0.1"))

	state, err := svc.GetPeerState(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionOnline, state.Connection.Status)
	assert.Equal(t, "10.0.0.1", state.Connection.RemoteHost)

	require.NoError(t, svc.MarkOffline(ctx, peer.ID))
	state, err = svc.GetPeerState(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionOffline, state.Connection.Status)
	assert.Empty(t, state.Connection.RemoteHost)
}

func TestPeerService_Delete(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	svc := services.NewPeerService(m)
	peer := newPeer(t, "peer-a")
	require.NoError(t, svc.StorePeerDescriptor(ctx, peer))

	deleted, err := svc.DeletePeerDescriptor(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, peer.ID, deleted.ID)

	_, err = svc.GetPeerState(ctx, peer.ID)
	assert.True(t, errors.Is(err, services.ErrPeerNotFound))
	_, ok, err := resources.Get(ctx, m, resources.DeviceDescriptors, peer.Topology.Devices[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = resources.Get(ctx, m, resources.PeerConfigurations, peer.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.DeletePeerDescriptor(ctx, peer.ID)
	assert.True(t, errors.Is(err, services.ErrPeerNotFound))
}

func TestPeerService_DeleteRefusedWhileUsedByCluster(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	peers := services.NewPeerService(m)
	clusters := services.NewClusterService(m)
	peer := newPeer(t, "peer-a")
	require.NoError(t, peers.StorePeerDescriptor(ctx, peer))
	require.NoError(t, clusters.StoreClusterConfiguration(ctx, newCluster(t, "cluster-a", peer.ID)))

	_, err := peers.DeletePeerDescriptor(ctx, peer.ID)
	assert.True(t, errors.Is(err, services.ErrPeerInUse))

	_, err = peers.GetPeerDescriptor(ctx, peer.ID)
	assert.NoError(t, err)
}
