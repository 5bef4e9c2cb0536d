package models

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ResourceID is the storage key of every resource. It is only unique within
// the column of a single resource kind.
type ResourceID uuid.UUID

// String returns the canonical UUID form
func (id ResourceID) String() string {
	return uuid.UUID(id).String()
}

// UUID returns the wrapped UUID
func (id ResourceID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

// Key is implemented by every domain key type that can address a resource
type Key interface {
	comparable
	UUID() uuid.UUID
}

type (
	// PeerID identifies a peer
	PeerID uuid.UUID
	// ClusterID identifies a cluster
	ClusterID uuid.UUID
	// DeviceID identifies a device of a peer topology
	DeviceID uuid.UUID
	// AccessoryID identifies an accessory of a peer topology
	AccessoryID uuid.UUID
	// ExecutorID identifies an executor of a peer
	ExecutorID uuid.UUID
	// NetworkInterfaceID identifies a network interface of a peer
	NetworkInterfaceID uuid.UUID
)

// NewPeerID returns a random PeerID
func NewPeerID() PeerID { return PeerID(uuid.New()) }

// NewClusterID returns a random ClusterID
func NewClusterID() ClusterID { return ClusterID(uuid.New()) }

// NewDeviceID returns a random DeviceID
func NewDeviceID() DeviceID { return DeviceID(uuid.New()) }

// NewAccessoryID returns a random AccessoryID
func NewAccessoryID() AccessoryID { return AccessoryID(uuid.New()) }

// NewExecutorID returns a random ExecutorID
func NewExecutorID() ExecutorID { return ExecutorID(uuid.New()) }

// NewNetworkInterfaceID returns a random NetworkInterfaceID
func NewNetworkInterfaceID() NetworkInterfaceID { return NetworkInterfaceID(uuid.New()) }

func (id PeerID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

func (id PeerID) String() string {
	return uuid.UUID(id).String()
}

func (id PeerID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *PeerID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func (id ClusterID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

func (id ClusterID) String() string {
	return uuid.UUID(id).String()
}

func (id ClusterID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *ClusterID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func (id DeviceID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

func (id DeviceID) String() string {
	return uuid.UUID(id).String()
}

func (id DeviceID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *DeviceID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func (id AccessoryID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

func (id AccessoryID) String() string {
	return uuid.UUID(id).String()
}

func (id AccessoryID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *AccessoryID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func (id ExecutorID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

func (id ExecutorID) String() string {
	return uuid.UUID(id).String()
}

func (id ExecutorID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *ExecutorID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func (id NetworkInterfaceID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

func (id NetworkInterfaceID) String() string {
	return uuid.UUID(id).String()
}

func (id NetworkInterfaceID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *NetworkInterfaceID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func unmarshalUUID(dst *uuid.UUID, b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return errors.Wrapf(err, "invalid id '%s'", string(b))
	}
	*dst = parsed
	return nil
}

// ParsePeerID parses the textual form of a PeerID
func ParsePeerID(s string) (PeerID, error) {
	var id PeerID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

// ParseClusterID parses the textual form of a ClusterID
func ParseClusterID(s string) (ClusterID, error) {
	var id ClusterID
	err := id.UnmarshalText([]byte(s))
	return id, err
}
