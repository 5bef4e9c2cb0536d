package services_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opendut-carl/internal/application/services"
	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/resources"
)

func newCluster(t *testing.T, name string, leader models.PeerID, devices ...models.DeviceID) models.ClusterConfiguration {
	t.Helper()
	clusterName, err := models.NewClusterName(name)
	require.NoError(t, err)
	return models.ClusterConfiguration{
		ID:      models.NewClusterID(),
		Name:    clusterName,
		Leader:  leader,
		Devices: devices,
	}
}

type clusterFixture struct {
	manager  *resources.Manager
	peers    *services.PeerService
	clusters *services.ClusterService
	leader   models.PeerDescriptor
	member   models.PeerDescriptor
	cluster  models.ClusterConfiguration
}

func newClusterFixture(t *testing.T) clusterFixture {
	t.Helper()
	ctx := context.Background()
	m := newManager(t)
	f := clusterFixture{
		manager:  m,
		peers:    services.NewPeerService(m),
		clusters: services.NewClusterService(m),
		leader:   newPeer(t, "leader"),
		member:   newPeer(t, "member"),
	}
	require.NoError(t, f.peers.StorePeerDescriptor(ctx, f.leader))
	require.NoError(t, f.peers.StorePeerDescriptor(ctx, f.member))
	f.cluster = newCluster(t, "cluster-a", f.leader.ID,
		f.leader.Topology.Devices[0].ID, f.member.Topology.Devices[0].ID)
	require.NoError(t, f.clusters.StoreClusterConfiguration(ctx, f.cluster))
	return f
}

func TestClusterService_StoreConfiguration(t *testing.T) {
	ctx := context.Background()
	f := newClusterFixture(t)

	got, err := f.clusters.GetClusterConfiguration(ctx, f.cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, f.cluster, got)

	all, err := f.clusters.ListClusterConfigurations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.clusters.GetClusterConfiguration(ctx, models.NewClusterID())
	assert.True(t, errors.Is(err, services.ErrClusterNotFound))
}

func TestClusterService_StoreConfigurationValidation(t *testing.T) {
	ctx := context.Background()
	f := newClusterFixture(t)

	tests := []struct {
		name    string
		cluster models.ClusterConfiguration
		wantErr error
	}{
		{
			name:    "unknown leader",
			cluster: newCluster(t, "cluster-b", models.NewPeerID()),
			wantErr: services.ErrPeerNotFound,
		},
		{
			name:    "unknown device",
			cluster: newCluster(t, "cluster-b", f.leader.ID, models.NewDeviceID()),
			wantErr: services.ErrDeviceNotFound,
		},
		{
			name:    "illegal name",
			cluster: models.ClusterConfiguration{ID: models.NewClusterID(), Name: "-", Leader: f.leader.ID},
			wantErr: services.ErrIllegalClusterConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.clusters.StoreClusterConfiguration(ctx, tt.cluster)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestClusterService_DeployAndUndeploy(t *testing.T) {
	ctx := context.Background()
	f := newClusterFixture(t)

	members, err := f.clusters.StoreClusterDeployment(ctx, models.ClusterDeployment{ID: f.cluster.ID})
	require.NoError(t, err)
	assert.Equal(t, []models.PeerID{f.leader.ID, f.member.ID}, members)

	for _, id := range members {
		state, err := f.peers.GetPeerState(ctx, id)
		require.NoError(t, err)
		assert.True(t, state.IsBlocked())
		require.NotNil(t, state.Member.Cluster)
		assert.Equal(t, f.cluster.ID, *state.Member.Cluster)

		runtime, ok, err := resources.Get(ctx, f.manager, resources.PeerRuntimeConfigurations, id)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotNil(t, runtime.ClusterAssignment)
		assert.Equal(t, f.leader.ID, runtime.ClusterAssignment.Leader)
		assert.Equal(t, members, runtime.ClusterAssignment.Members)
	}

	// deployed clusters and their members are frozen
	err = f.clusters.StoreClusterConfiguration(ctx, f.cluster)
	assert.True(t, errors.Is(err, services.ErrClusterDeployed))
	_, err = f.clusters.DeleteClusterConfiguration(ctx, f.cluster.ID)
	assert.True(t, errors.Is(err, services.ErrClusterDeployed))
	err = f.peers.StorePeerDescriptor(ctx, f.member)
	assert.True(t, errors.Is(err, services.ErrPeerInUse))

	deployments, err := f.clusters.ListClusterDeployments(ctx)
	require.NoError(t, err)
	assert.Len(t, deployments, 1)

	_, err = f.clusters.DeleteClusterDeployment(ctx, f.cluster.ID)
	require.NoError(t, err)

	for _, id := range members {
		state, err := f.peers.GetPeerState(ctx, id)
		require.NoError(t, err)
		assert.False(t, state.IsBlocked())
		assert.Nil(t, state.Member.Cluster)

		runtime, ok, err := resources.Get(ctx, f.manager, resources.PeerRuntimeConfigurations, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Nil(t, runtime.ClusterAssignment)
	}

	_, err = f.clusters.DeleteClusterDeployment(ctx, f.cluster.ID)
	assert.True(t, errors.Is(err, services.ErrClusterNotDeployed))

	deleted, err := f.clusters.DeleteClusterConfiguration(ctx, f.cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, f.cluster.Name, deleted.Name)
}

func TestClusterService_DeployRefusesBlockedMembers(t *testing.T) {
	ctx := context.Background()
	f := newClusterFixture(t)
	_, err := f.clusters.StoreClusterDeployment(ctx, models.ClusterDeployment{ID: f.cluster.ID})
	require.NoError(t, err)

	other := newCluster(t, "cluster-b", f.member.ID)
	require.NoError(t, f.clusters.StoreClusterConfiguration(ctx, other))

	_, err = f.clusters.StoreClusterDeployment(ctx, models.ClusterDeployment{ID: other.ID})
	assert.True(t, errors.Is(err, services.ErrPeerInUse))

	// nothing of the refused deployment was written
	deployments, err := f.clusters.ListClusterDeployments(ctx)
	require.NoError(t, err)
	assert.Len(t, deployments, 1)
	state, err := f.peers.GetPeerState(ctx, f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, f.cluster.ID, *state.Member.Cluster)
}

func TestClusterService_DeployUnknownCluster(t *testing.T) {
	f := newClusterFixture(t)
	_, err := f.clusters.StoreClusterDeployment(context.Background(), models.ClusterDeployment{ID: models.NewClusterID()})
	assert.True(t, errors.Is(err, services.ErrClusterNotFound))
}
