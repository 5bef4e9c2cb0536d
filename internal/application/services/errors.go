package services

import "github.com/pkg/errors"

// Domain errors returned by the services
var (
	ErrPeerNotFound          = errors.New("peer not found")
	ErrPeerInUse             = errors.New("peer is in use by a cluster")
	ErrIllegalPeerDescriptor = errors.New("illegal peer descriptor")
	ErrClusterNotFound       = errors.New("cluster not found")
	ErrClusterDeployed       = errors.New("cluster is deployed")
	ErrIllegalClusterConfig  = errors.New("illegal cluster configuration")
	ErrDeviceNotFound        = errors.New("device not found")
	ErrClusterNotDeployed    = errors.New("cluster is not deployed")
	ErrDeviceInUse           = errors.New("device belongs to another peer")
	ErrAccessoryInUse        = errors.New("accessory belongs to another peer")
)
