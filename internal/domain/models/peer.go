package models

import (
	"github.com/pkg/errors"
)

// PeerLocation is a free text describing where a peer is set up
type PeerLocation string

// PeerDescriptor is the registered description of a peer
type PeerDescriptor struct {
	ID        PeerID                `json:"id"`
	Name      PeerName              `json:"name"`
	Location  *PeerLocation         `json:"location,omitempty"`
	Network   PeerNetworkDescriptor `json:"network"`
	Topology  Topology              `json:"topology"`
	Executors []ExecutorDescriptor  `json:"executors"`
}

// Validate checks the descriptor and everything it contains
func (p PeerDescriptor) Validate() error {
	if err := p.Name.Validate(); err != nil {
		return err
	}
	names := make(map[NetworkInterfaceName]struct{}, len(p.Network.Interfaces))
	for _, iface := range p.Network.Interfaces {
		if err := iface.Validate(); err != nil {
			return errors.WithMessagef(err, "peer '%s'", p.Name)
		}
		if _, dup := names[iface.Name]; dup {
			return errors.Errorf("peer '%s': interface '%s' configured twice", p.Name, iface.Name)
		}
		names[iface.Name] = struct{}{}
	}
	for _, device := range p.Topology.Devices {
		if _, ok := p.Network.Interface(device.Interface); !ok {
			return errors.Errorf("peer '%s': device '%s' refers to unknown interface %s",
				p.Name, device.Name, device.Interface)
		}
	}
	for _, executor := range p.Executors {
		if err := executor.Validate(); err != nil {
			return errors.WithMessagef(err, "peer '%s'", p.Name)
		}
	}
	return nil
}

// Clone returns a deep copy
func (p PeerDescriptor) Clone() PeerDescriptor {
	out := PeerDescriptor{
		ID:       p.ID,
		Name:     p.Name,
		Network:  p.Network.Clone(),
		Topology: p.Topology.Clone(),
	}
	if p.Location != nil {
		location := *p.Location
		out.Location = &location
	}
	if p.Executors != nil {
		out.Executors = make([]ExecutorDescriptor, len(p.Executors))
		for i := range p.Executors {
			out.Executors[i] = p.Executors[i].Clone()
		}
	}
	return out
}

// PersistableResource marks PeerDescriptor as storable in the database
func (PeerDescriptor) PersistableResource() {}

// DeviceIDs returns the ids of all devices in the peer's topology
func (p PeerDescriptor) DeviceIDs() []DeviceID {
	ids := make([]DeviceID, 0, len(p.Topology.Devices))
	for _, d := range p.Topology.Devices {
		ids = append(ids, d.ID)
	}
	return ids
}

// ConnectionStatus tells whether a peer is connected to CARL
type ConnectionStatus string

const (
	ConnectionOffline ConnectionStatus = "offline"
	ConnectionOnline  ConnectionStatus = "online"
)

// MemberStatus tells whether a peer is free to join a cluster
type MemberStatus string

const (
	MemberAvailable MemberStatus = "available"
	MemberBlocked   MemberStatus = "blocked"
)

// PeerConnectionState is the observed connection of a peer
type PeerConnectionState struct {
	Status     ConnectionStatus `json:"status"`
	RemoteHost string           `json:"remoteHost,omitempty"`
}

// PeerMemberState is the cluster membership of a peer
type PeerMemberState struct {
	Status  MemberStatus `json:"status"`
	Cluster *ClusterID   `json:"cluster,omitempty"`
}

// PeerState is the observed state of a peer
type PeerState struct {
	Connection PeerConnectionState `json:"connection"`
	Member     PeerMemberState     `json:"member"`
}

// NewPeerState returns the state of a freshly registered peer
func NewPeerState() PeerState {
	return PeerState{
		Connection: PeerConnectionState{Status: ConnectionOffline},
		Member:     PeerMemberState{Status: MemberAvailable},
	}
}

// Clone returns a deep copy
func (s PeerState) Clone() PeerState {
	out := s
	if s.Member.Cluster != nil {
		id := *s.Member.Cluster
		out.Member.Cluster = &id
	}
	return out
}

// PersistableResource marks PeerState as storable in the database
func (PeerState) PersistableResource() {}

// IsBlocked reports whether the peer is a member of a deployed cluster
func (s PeerState) IsBlocked() bool {
	return s.Member.Status == MemberBlocked
}
