package models

import (
	"slices"
)

// ClusterConfiguration groups devices of several peers under one leader
type ClusterConfiguration struct {
	ID      ClusterID   `json:"id"`
	Name    ClusterName `json:"name"`
	Leader  PeerID      `json:"leader"`
	Devices []DeviceID  `json:"devices"`
}

// Validate checks the configuration
func (c ClusterConfiguration) Validate() error {
	return c.Name.Validate()
}

// Clone returns a deep copy
func (c ClusterConfiguration) Clone() ClusterConfiguration {
	out := c
	out.Devices = cloneSlice(c.Devices)
	return out
}

// PersistableResource marks ClusterConfiguration as storable in the database
func (ClusterConfiguration) PersistableResource() {}

// HasDevice reports whether the device is part of the cluster
func (c ClusterConfiguration) HasDevice(id DeviceID) bool {
	return slices.Contains(c.Devices, id)
}

// ClusterDeployment marks a cluster configuration as deployed
type ClusterDeployment struct {
	ID ClusterID `json:"id"`
}

// Clone returns a copy
func (d ClusterDeployment) Clone() ClusterDeployment {
	return d
}

// PersistableResource marks ClusterDeployment as storable in the database
func (ClusterDeployment) PersistableResource() {}
