package models

import (
	"github.com/pkg/errors"
)

// NetworkInterfaceNameMaxLength mirrors the kernel limit for interface names
const NetworkInterfaceNameMaxLength = 15

// ErrInvalidInterfaceName is returned for empty or overlong interface names
var ErrInvalidInterfaceName = errors.New("invalid network interface name")

// NetworkInterfaceName is the name of a network interface on a peer
type NetworkInterfaceName string

// NewNetworkInterfaceName validates the given interface name
func NewNetworkInterfaceName(value string) (NetworkInterfaceName, error) {
	if len(value) == 0 || len(value) > NetworkInterfaceNameMaxLength {
		return "", errors.WithMessagef(ErrInvalidInterfaceName, "'%s'", value)
	}
	return NetworkInterfaceName(value), nil
}

// InterfaceKind is the kind of a network interface
type InterfaceKind string

const (
	InterfaceKindEthernet InterfaceKind = "ethernet"
	InterfaceKindCan      InterfaceKind = "can"
)

// CanConfiguration holds the bus parameters of a CAN interface
type CanConfiguration struct {
	Bitrate         uint32  `json:"bitrate"`
	SamplePoint     float32 `json:"samplePoint"`
	FD              bool    `json:"fd"`
	DataBitrate     uint32  `json:"dataBitrate,omitempty"`
	DataSamplePoint float32 `json:"dataSamplePoint,omitempty"`
}

// NetworkInterfaceConfiguration describes how an interface is configured
type NetworkInterfaceConfiguration struct {
	Kind InterfaceKind     `json:"kind"`
	Can  *CanConfiguration `json:"can,omitempty"`
}

// EthernetConfiguration returns the configuration of a plain ethernet interface
func EthernetConfiguration() NetworkInterfaceConfiguration {
	return NetworkInterfaceConfiguration{Kind: InterfaceKindEthernet}
}

// NetworkInterfaceDescriptor describes a network interface of a peer
type NetworkInterfaceDescriptor struct {
	ID            NetworkInterfaceID            `json:"id"`
	Name          NetworkInterfaceName          `json:"name"`
	Configuration NetworkInterfaceConfiguration `json:"configuration"`
}

// Validate checks the descriptor
func (d NetworkInterfaceDescriptor) Validate() error {
	if _, err := NewNetworkInterfaceName(string(d.Name)); err != nil {
		return err
	}
	switch d.Configuration.Kind {
	case InterfaceKindEthernet:
		return nil
	case InterfaceKindCan:
		if d.Configuration.Can == nil {
			return errors.Errorf("interface '%s' is a CAN interface without CAN configuration", d.Name)
		}
		return nil
	default:
		return errors.Errorf("interface '%s' has unknown kind '%s'", d.Name, d.Configuration.Kind)
	}
}

// Clone returns a deep copy
func (d NetworkInterfaceDescriptor) Clone() NetworkInterfaceDescriptor {
	out := d
	if d.Configuration.Can != nil {
		can := *d.Configuration.Can
		out.Configuration.Can = &can
	}
	return out
}

// PeerNetworkDescriptor describes the network setup of a peer
type PeerNetworkDescriptor struct {
	Interfaces []NetworkInterfaceDescriptor `json:"interfaces"`
	BridgeName *NetworkInterfaceName        `json:"bridgeName,omitempty"`
}

// Clone returns a deep copy
func (d PeerNetworkDescriptor) Clone() PeerNetworkDescriptor {
	out := PeerNetworkDescriptor{}
	if d.Interfaces != nil {
		out.Interfaces = make([]NetworkInterfaceDescriptor, len(d.Interfaces))
		for i := range d.Interfaces {
			out.Interfaces[i] = d.Interfaces[i].Clone()
		}
	}
	if d.BridgeName != nil {
		name := *d.BridgeName
		out.BridgeName = &name
	}
	return out
}

// Interface returns the interface with the given id
func (d PeerNetworkDescriptor) Interface(id NetworkInterfaceID) (NetworkInterfaceDescriptor, bool) {
	for _, iface := range d.Interfaces {
		if iface.ID == id {
			return iface, true
		}
	}
	return NetworkInterfaceDescriptor{}, false
}
