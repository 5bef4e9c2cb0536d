package resources

import (
	"fmt"
	"sync"

	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/domain/ports"
)

// Columns of the resource store. Each one maps a domain key type onto the
// ResourceID space of exactly one resource type, so a key can only address
// the entities it was declared for.
var (
	PeerDescriptors           = newColumn[models.PeerID, models.PeerDescriptor]("peer-descriptor")
	PeerStates                = newColumn[models.PeerID, models.PeerState]("peer-state")
	PeerConfigurations        = newColumn[models.PeerID, models.PeerConfiguration]("peer-configuration")
	PeerRuntimeConfigurations = newColumn[models.PeerID, models.PeerRuntimeConfiguration]("peer-runtime-configuration")
	ClusterConfigurations     = newColumn[models.ClusterID, models.ClusterConfiguration]("cluster-configuration")
	ClusterDeployments        = newColumn[models.ClusterID, models.ClusterDeployment]("cluster-deployment")
	DeviceDescriptors         = newColumn[models.DeviceID, models.DeviceDescriptor]("device-descriptor")
	AccessoryDescriptors      = newColumn[models.AccessoryID, models.AccessoryDescriptor]("accessory-descriptor")
)

// Column addresses the values of resource type R by keys of type K
type Column[K models.Key, R ports.Resource[R]] struct {
	kind ports.Kind
}

// Kind returns the storage kind of the column
func (c Column[K, R]) Kind() ports.Kind {
	return c.kind
}

// IntoID maps a domain key onto the storage id of the column
func (c Column[K, R]) IntoID(key K) models.ResourceID {
	return models.ResourceID(key.UUID())
}

// registeredColumn is the type-erased form of a column
type registeredColumn struct {
	kind   ports.Kind
	length func(View) (int, error)
}

var (
	registryMu sync.Mutex
	registry   = map[ports.Kind]registeredColumn{}
)

// newColumn declares a column; declaring the same kind twice panics
func newColumn[K models.Key, R ports.Resource[R]](kind ports.Kind) Column[K, R] {
	col := Column[K, R]{kind: kind}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("resource column '%s' declared twice", kind))
	}
	registry[kind] = registeredColumn{kind: kind, length: col.Len}
	return col
}

// registeredColumns returns all declared columns
func registeredColumns() []registeredColumn {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]registeredColumn, 0, len(registry))
	for _, col := range registry {
		out = append(out, col)
	}
	return out
}
