package models

// DeviceDescriptor describes a device (ECU, bus participant) attached to a peer
type DeviceDescriptor struct {
	ID          DeviceID           `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Interface   NetworkInterfaceID `json:"interface"`
	Tags        []string           `json:"tags"`
}

// Clone returns a deep copy
func (d DeviceDescriptor) Clone() DeviceDescriptor {
	out := d
	out.Tags = cloneSlice(d.Tags)
	return out
}

// PersistableResource marks DeviceDescriptor as storable in the database
func (DeviceDescriptor) PersistableResource() {}

// AccessoryDescriptor describes test equipment attached to a peer
type AccessoryDescriptor struct {
	ID          AccessoryID `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Model       string      `json:"model"`
}

// Clone returns a copy
func (a AccessoryDescriptor) Clone() AccessoryDescriptor {
	return a
}

// PersistableResource marks AccessoryDescriptor as storable in the database
func (AccessoryDescriptor) PersistableResource() {}

// Topology lists the devices and accessories a peer is connected to
type Topology struct {
	Devices     []DeviceDescriptor    `json:"devices"`
	Accessories []AccessoryDescriptor `json:"accessories"`
}

// Clone returns a deep copy
func (t Topology) Clone() Topology {
	out := Topology{Accessories: cloneSlice(t.Accessories)}
	if t.Devices != nil {
		out.Devices = make([]DeviceDescriptor, len(t.Devices))
		for i := range t.Devices {
			out.Devices[i] = t.Devices[i].Clone()
		}
	}
	return out
}
