package services

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/resources"
)

// ClusterService provides business logic for clusters and their deployments
type ClusterService struct {
	manager *resources.Manager
}

// NewClusterService creates a new ClusterService
func NewClusterService(manager *resources.Manager) *ClusterService {
	return &ClusterService{manager: manager}
}

// StoreClusterConfiguration creates or updates a cluster configuration.
// The leader and every device have to be known; deployed clusters cannot be changed.
func (s *ClusterService) StoreClusterConfiguration(ctx context.Context, cluster models.ClusterConfiguration) error {
	if err := cluster.Validate(); err != nil {
		return errors.Wrap(ErrIllegalClusterConfig, err.Error())
	}

	res, err := resources.Mutate(ctx, s.manager, func(tx *resources.Transaction) (struct{}, error) {
		deployed, err := resources.ClusterDeployments.Contains(tx, cluster.ID)
		if err != nil {
			return struct{}{}, err
		}
		if deployed {
			return struct{}{}, errors.Wrapf(ErrClusterDeployed, "cluster '%s'", cluster.Name)
		}
		known, err := resources.PeerDescriptors.Contains(tx, cluster.Leader)
		if err != nil {
			return struct{}{}, err
		}
		if !known {
			return struct{}{}, errors.Wrapf(ErrPeerNotFound, "leader %s of cluster '%s'", cluster.Leader, cluster.Name)
		}
		for _, device := range cluster.Devices {
			known, err := resources.DeviceDescriptors.Contains(tx, device)
			if err != nil {
				return struct{}{}, err
			}
			if !known {
				return struct{}{}, errors.Wrapf(ErrDeviceNotFound, "device %s of cluster '%s'", device, cluster.Name)
			}
		}
		return struct{}{}, resources.ClusterConfigurations.Insert(tx, cluster.ID, cluster)
	})
	if err != nil {
		klog.Errorf("StoreClusterConfiguration failed for cluster %s: %v", cluster.ID, err)
		return errors.WithMessage(err, "store cluster configuration")
	}
	if res.Err == nil {
		klog.V(2).Infof("Stored cluster configuration '%s' (%s)", cluster.Name, cluster.ID)
	}
	return res.Err
}

// DeleteClusterConfiguration removes a cluster configuration that is not deployed
func (s *ClusterService) DeleteClusterConfiguration(ctx context.Context, id models.ClusterID) (models.ClusterConfiguration, error) {
	res, err := resources.Mutate(ctx, s.manager, func(tx *resources.Transaction) (models.ClusterConfiguration, error) {
		deployed, err := resources.ClusterDeployments.Contains(tx, id)
		if err != nil {
			return models.ClusterConfiguration{}, err
		}
		if deployed {
			return models.ClusterConfiguration{}, errors.Wrapf(ErrClusterDeployed, "cluster %s", id)
		}
		cluster, ok, err := resources.ClusterConfigurations.Remove(tx, id)
		if err != nil {
			return cluster, err
		}
		if !ok {
			return cluster, errors.Wrapf(ErrClusterNotFound, "cluster %s", id)
		}
		return cluster, nil
	})
	if err != nil {
		klog.Errorf("DeleteClusterConfiguration failed for cluster %s: %v", id, err)
		return models.ClusterConfiguration{}, errors.WithMessage(err, "delete cluster configuration")
	}
	if res.Err != nil {
		return models.ClusterConfiguration{}, res.Err
	}
	klog.V(2).Infof("Deleted cluster configuration '%s' (%s)", res.Value.Name, id)
	return res.Value, nil
}

// GetClusterConfiguration returns a cluster configuration
func (s *ClusterService) GetClusterConfiguration(ctx context.Context, id models.ClusterID) (models.ClusterConfiguration, error) {
	cluster, ok, err := resources.Get(ctx, s.manager, resources.ClusterConfigurations, id)
	if err != nil {
		return cluster, errors.WithMessage(err, "get cluster configuration")
	}
	if !ok {
		return cluster, errors.Wrapf(ErrClusterNotFound, "cluster %s", id)
	}
	return cluster, nil
}

// ListClusterConfigurations returns all cluster configurations
func (s *ClusterService) ListClusterConfigurations(ctx context.Context) ([]models.ClusterConfiguration, error) {
	clusters, err := resources.List(ctx, s.manager, resources.ClusterConfigurations)
	return clusters, errors.WithMessage(err, "list cluster configurations")
}

// ListClusterDeployments returns all deployed clusters
func (s *ClusterService) ListClusterDeployments(ctx context.Context) ([]models.ClusterDeployment, error) {
	deployments, err := resources.List(ctx, s.manager, resources.ClusterDeployments)
	return deployments, errors.WithMessage(err, "list cluster deployments")
}

// StoreClusterDeployment deploys a cluster: the deployment is recorded, every
// member gets its cluster assignment and is blocked for other clusters.
func (s *ClusterService) StoreClusterDeployment(ctx context.Context, deployment models.ClusterDeployment) ([]models.PeerID, error) {
	res, err := resources.Mutate(ctx, s.manager, func(tx *resources.Transaction) ([]models.PeerID, error) {
		cluster, ok, err := resources.ClusterConfigurations.Get(tx, deployment.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrapf(ErrClusterNotFound, "cluster %s", deployment.ID)
		}
		members, err := clusterMembers(tx, cluster)
		if err != nil {
			return nil, err
		}

		for _, member := range members {
			state, _, err := resources.PeerStates.Get(tx, member)
			if err != nil {
				return nil, err
			}
			if state.IsBlocked() && state.Member.Cluster != nil && *state.Member.Cluster != cluster.ID {
				return nil, errors.Wrapf(ErrPeerInUse, "peer %s is part of deployed cluster %s", member, *state.Member.Cluster)
			}
		}

		if err := resources.ClusterDeployments.Insert(tx, deployment.ID, deployment); err != nil {
			return nil, err
		}
		for _, member := range members {
			runtime := models.PeerRuntimeConfiguration{
				ClusterAssignment: &models.ClusterAssignment{
					ID:      cluster.ID,
					Leader:  cluster.Leader,
					Members: members,
				},
			}
			if err := resources.PeerRuntimeConfigurations.Insert(tx, member, runtime); err != nil {
				return nil, err
			}
			clusterID := cluster.ID
			blocked := models.NewPeerState()
			blocked.Member = models.PeerMemberState{Status: models.MemberBlocked, Cluster: &clusterID}
			err := resources.PeerStates.Update(tx, member).
				Modify(func(state *models.PeerState) { state.Member = blocked.Member }).
				OrInsert(blocked)
			if err != nil {
				return nil, err
			}
		}
		return members, nil
	})
	if err != nil {
		klog.Errorf("StoreClusterDeployment failed for cluster %s: %v", deployment.ID, err)
		return nil, errors.WithMessage(err, "store cluster deployment")
	}
	if res.Err != nil {
		return nil, res.Err
	}
	klog.V(2).Infof("Deployed cluster %s with %d members", deployment.ID, len(res.Value))
	return res.Value, nil
}

// DeleteClusterDeployment undeploys a cluster and releases its members
func (s *ClusterService) DeleteClusterDeployment(ctx context.Context, id models.ClusterID) (models.ClusterDeployment, error) {
	res, err := resources.Mutate(ctx, s.manager, func(tx *resources.Transaction) (models.ClusterDeployment, error) {
		deployment, ok, err := resources.ClusterDeployments.Remove(tx, id)
		if err != nil {
			return deployment, err
		}
		if !ok {
			return deployment, errors.Wrapf(ErrClusterNotDeployed, "cluster %s", id)
		}

		for runtime, err := range resources.PeerRuntimeConfigurations.AllMut(tx) {
			if err != nil {
				return deployment, err
			}
			if runtime.ClusterAssignment != nil && runtime.ClusterAssignment.ID == id {
				runtime.ClusterAssignment = nil
			}
		}
		for state, err := range resources.PeerStates.AllMut(tx) {
			if err != nil {
				return deployment, err
			}
			if state.Member.Cluster != nil && *state.Member.Cluster == id {
				state.Member = models.PeerMemberState{Status: models.MemberAvailable}
			}
		}
		return deployment, nil
	})
	if err != nil {
		klog.Errorf("DeleteClusterDeployment failed for cluster %s: %v", id, err)
		return models.ClusterDeployment{}, errors.WithMessage(err, "delete cluster deployment")
	}
	if res.Err != nil {
		return models.ClusterDeployment{}, res.Err
	}
	klog.V(2).Infof("Undeployed cluster %s", id)
	return res.Value, nil
}

// clusterMembers returns the leader followed by the owners of the cluster's devices
func clusterMembers(tx *resources.Transaction, cluster models.ClusterConfiguration) ([]models.PeerID, error) {
	members := []models.PeerID{cluster.Leader}
	seen := map[models.PeerID]struct{}{cluster.Leader: {}}
	for peer, err := range resources.PeerDescriptors.All(tx) {
		if err != nil {
			return nil, err
		}
		if _, ok := seen[peer.ID]; ok {
			continue
		}
		for _, device := range peer.Topology.Devices {
			if cluster.HasDevice(device.ID) {
				members = append(members, peer.ID)
				seen[peer.ID] = struct{}{}
				break
			}
		}
	}
	return members, nil
}
