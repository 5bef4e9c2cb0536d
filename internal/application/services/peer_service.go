package services

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/resources"
)

// PeerService provides business logic for peers
type PeerService struct {
	manager *resources.Manager
}

// NewPeerService creates a new PeerService
func NewPeerService(manager *resources.Manager) *PeerService {
	return &PeerService{manager: manager}
}

// StorePeerDescriptor registers or updates a peer together with its devices,
// accessories, initial state and executor configuration
func (s *PeerService) StorePeerDescriptor(ctx context.Context, peer models.PeerDescriptor) error {
	if err := peer.Validate(); err != nil {
		return errors.Wrap(ErrIllegalPeerDescriptor, err.Error())
	}

	res, err := resources.Mutate(ctx, s.manager, func(tx *resources.Transaction) (struct{}, error) {
		return struct{}{}, storePeerDescriptor(tx, peer)
	})
	if err != nil {
		klog.Errorf("StorePeerDescriptor failed for peer %s: %v", peer.ID, err)
		return errors.WithMessage(err, "store peer descriptor")
	}
	if res.Err != nil {
		return res.Err
	}

	klog.V(2).Infof("Stored peer descriptor %s (%s)", peer.Name, peer.ID)
	return nil
}

func storePeerDescriptor(tx *resources.Transaction, peer models.PeerDescriptor) error {
	state, ok, err := resources.PeerStates.Get(tx, peer.ID)
	if err != nil {
		return err
	}
	if ok && state.IsBlocked() {
		return errors.Wrapf(ErrPeerInUse, "peer %s is part of a deployed cluster", peer.ID)
	}

	previous, existed, err := resources.PeerDescriptors.Get(tx, peer.ID)
	if err != nil {
		return err
	}

	if err := checkTopologyOwnership(tx, peer); err != nil {
		return err
	}
	if existed {
		if err := removeStaleTopology(tx, previous.Topology, peer.Topology); err != nil {
			return err
		}
	}
	for _, device := range peer.Topology.Devices {
		if err := resources.DeviceDescriptors.Insert(tx, device.ID, device); err != nil {
			return err
		}
	}
	for _, accessory := range peer.Topology.Accessories {
		if err := resources.AccessoryDescriptors.Insert(tx, accessory.ID, accessory); err != nil {
			return err
		}
	}

	if err := resources.PeerDescriptors.Insert(tx, peer.ID, peer); err != nil {
		return err
	}
	if err := resources.PeerStates.Update(tx, peer.ID).OrInsert(models.NewPeerState()); err != nil {
		return err
	}

	configuration, _, err := resources.PeerConfigurations.Get(tx, peer.ID)
	if err != nil {
		return err
	}
	for _, executor := range previous.Executors {
		if !hasExecutor(peer.Executors, executor.ID) {
			configuration.SetExecutor(executor, models.ParameterAbsent)
		}
	}
	for _, executor := range peer.Executors {
		configuration.SetExecutor(executor, models.ParameterPresent)
	}
	return resources.PeerConfigurations.Insert(tx, peer.ID, configuration)
}

// checkTopologyOwnership refuses devices and accessories registered by another peer
func checkTopologyOwnership(tx *resources.Transaction, peer models.PeerDescriptor) error {
	for other, err := range resources.PeerDescriptors.All(tx) {
		if err != nil {
			return err
		}
		if other.ID == peer.ID {
			continue
		}
		for _, device := range peer.Topology.Devices {
			if hasDevice(other.Topology.Devices, device.ID) {
				return errors.Wrapf(ErrDeviceInUse, "device %s is registered by peer %s", device.ID, other.ID)
			}
		}
		for _, accessory := range peer.Topology.Accessories {
			if hasAccessory(other.Topology.Accessories, accessory.ID) {
				return errors.Wrapf(ErrAccessoryInUse, "accessory %s is registered by peer %s", accessory.ID, other.ID)
			}
		}
	}
	return nil
}

func removeStaleTopology(tx *resources.Transaction, previous, current models.Topology) error {
	for _, device := range previous.Devices {
		if !hasDevice(current.Devices, device.ID) {
			if _, _, err := resources.DeviceDescriptors.Remove(tx, device.ID); err != nil {
				return err
			}
		}
	}
	for _, accessory := range previous.Accessories {
		if !hasAccessory(current.Accessories, accessory.ID) {
			if _, _, err := resources.AccessoryDescriptors.Remove(tx, accessory.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeletePeerDescriptor removes a peer and everything stored for it
func (s *PeerService) DeletePeerDescriptor(ctx context.Context, id models.PeerID) (models.PeerDescriptor, error) {
	res, err := resources.Mutate(ctx, s.manager, func(tx *resources.Transaction) (models.PeerDescriptor, error) {
		peer, ok, err := resources.PeerDescriptors.Get(tx, id)
		if err != nil {
			return peer, err
		}
		if !ok {
			return peer, errors.Wrapf(ErrPeerNotFound, "peer %s", id)
		}

		clusters, err := resources.ClusterConfigurations.List(tx)
		if err != nil {
			return peer, err
		}
		for _, cluster := range clusters {
			if usesPeer(cluster, peer) {
				return peer, errors.Wrapf(ErrPeerInUse, "peer %s is used by cluster '%s'", id, cluster.Name)
			}
		}

		for _, device := range peer.Topology.Devices {
			if _, _, err := resources.DeviceDescriptors.Remove(tx, device.ID); err != nil {
				return peer, err
			}
		}
		for _, accessory := range peer.Topology.Accessories {
			if _, _, err := resources.AccessoryDescriptors.Remove(tx, accessory.ID); err != nil {
				return peer, err
			}
		}
		if _, _, err := resources.PeerStates.Remove(tx, id); err != nil {
			return peer, err
		}
		if _, _, err := resources.PeerConfigurations.Remove(tx, id); err != nil {
			return peer, err
		}
		if _, _, err := resources.PeerRuntimeConfigurations.Remove(tx, id); err != nil {
			return peer, err
		}
		_, _, err = resources.PeerDescriptors.Remove(tx, id)
		return peer, err
	})
	if err != nil {
		klog.Errorf("DeletePeerDescriptor failed for peer %s: %v", id, err)
		return models.PeerDescriptor{}, errors.WithMessage(err, "delete peer descriptor")
	}
	if res.Err != nil {
		return models.PeerDescriptor{}, res.Err
	}

	klog.V(2).Infof("Deleted peer descriptor %s (%s)", res.Value.Name, id)
	return res.Value, nil
}

// GetPeerDescriptor returns the descriptor of a peer
func (s *PeerService) GetPeerDescriptor(ctx context.Context, id models.PeerID) (models.PeerDescriptor, error) {
	peer, ok, err := resources.Get(ctx, s.manager, resources.PeerDescriptors, id)
	if err != nil {
		return peer, errors.WithMessage(err, "get peer descriptor")
	}
	if !ok {
		return peer, errors.Wrapf(ErrPeerNotFound, "peer %s", id)
	}
	return peer, nil
}

// ListPeerDescriptors returns all registered peers
func (s *PeerService) ListPeerDescriptors(ctx context.Context) ([]models.PeerDescriptor, error) {
	peers, err := resources.List(ctx, s.manager, resources.PeerDescriptors)
	return peers, errors.WithMessage(err, "list peer descriptors")
}

// GetPeerState returns the observed state of a peer
func (s *PeerService) GetPeerState(ctx context.Context, id models.PeerID) (models.PeerState, error) {
	state, ok, err := resources.Get(ctx, s.manager, resources.PeerStates, id)
	if err != nil {
		return state, errors.WithMessage(err, "get peer state")
	}
	if !ok {
		return state, errors.Wrapf(ErrPeerNotFound, "peer %s", id)
	}
	return state, nil
}

// GetPeerConfiguration returns the declarative configuration of a peer
func (s *PeerService) GetPeerConfiguration(ctx context.Context, id models.PeerID) (models.PeerConfiguration, error) {
	configuration, ok, err := resources.Get(ctx, s.manager, resources.PeerConfigurations, id)
	if err != nil {
		return configuration, errors.WithMessage(err, "get peer configuration")
	}
	if !ok {
		return configuration, errors.Wrapf(ErrPeerNotFound, "peer %s", id)
	}
	return configuration, nil
}

// MarkOnline records that the peer connected from remoteHost
func (s *PeerService) MarkOnline(ctx context.Context, id models.PeerID, remoteHost string) error {
	return s.setConnection(ctx, id, models.PeerConnectionState{
		Status:     models.ConnectionOnline,
		RemoteHost: remoteHost,
	})
}

// MarkOffline records that the peer disconnected
func (s *PeerService) MarkOffline(ctx context.Context, id models.PeerID) error {
	return s.setConnection(ctx, id, models.PeerConnectionState{Status: models.ConnectionOffline})
}

func (s *PeerService) setConnection(ctx context.Context, id models.PeerID, connection models.PeerConnectionState) error {
	res, err := resources.Mutate(ctx, s.manager, func(tx *resources.Transaction) (struct{}, error) {
		known, err := resources.PeerDescriptors.Contains(tx, id)
		if err != nil {
			return struct{}{}, err
		}
		if !known {
			return struct{}{}, errors.Wrapf(ErrPeerNotFound, "peer %s", id)
		}
		initial := models.NewPeerState()
		initial.Connection = connection
		return struct{}{}, resources.PeerStates.Update(tx, id).
			Modify(func(state *models.PeerState) { state.Connection = connection }).
			OrInsert(initial)
	})
	if err != nil {
		klog.Errorf("Updating connection state of peer %s failed: %v", id, err)
		return errors.WithMessage(err, "update peer state")
	}
	if res.Err == nil {
		klog.V(2).Infof("Peer %s is %s", id, connection.Status)
	}
	return res.Err
}

func usesPeer(cluster models.ClusterConfiguration, peer models.PeerDescriptor) bool {
	if cluster.Leader == peer.ID {
		return true
	}
	for _, device := range peer.Topology.Devices {
		if cluster.HasDevice(device.ID) {
			return true
		}
	}
	return false
}

func hasDevice(devices []models.DeviceDescriptor, id models.DeviceID) bool {
	for _, d := range devices {
		if d.ID == id {
			return true
		}
	}
	return false
}

func hasAccessory(accessories []models.AccessoryDescriptor, id models.AccessoryID) bool {
	for _, a := range accessories {
		if a.ID == id {
			return true
		}
	}
	return false
}

func hasExecutor(executors []models.ExecutorDescriptor, id models.ExecutorID) bool {
	for _, e := range executors {
		if e.ID == id {
			return true
		}
	}
	return false
}
