package models

import "github.com/google/uuid"

// ParameterTarget is the desired presence of a configuration parameter on a peer
type ParameterTarget string

const (
	ParameterPresent ParameterTarget = "present"
	ParameterAbsent  ParameterTarget = "absent"
)

// Parameter is one declarative configuration item of a peer
type Parameter[T any] struct {
	ID     uuid.UUID       `json:"id"`
	Target ParameterTarget `json:"target"`
	Value  T               `json:"value"`
}

// PeerConfiguration is the declarative configuration a peer converges to
type PeerConfiguration struct {
	Executors []Parameter[ExecutorDescriptor] `json:"executors"`
}

// Clone returns a deep copy
func (c PeerConfiguration) Clone() PeerConfiguration {
	out := PeerConfiguration{}
	if c.Executors != nil {
		out.Executors = make([]Parameter[ExecutorDescriptor], len(c.Executors))
		for i, p := range c.Executors {
			out.Executors[i] = Parameter[ExecutorDescriptor]{ID: p.ID, Target: p.Target, Value: p.Value.Clone()}
		}
	}
	return out
}

// PersistableResource marks PeerConfiguration as storable in the database
func (PeerConfiguration) PersistableResource() {}

// SetExecutor records the executor with the given target, replacing an
// earlier parameter for the same executor.
func (c *PeerConfiguration) SetExecutor(executor ExecutorDescriptor, target ParameterTarget) {
	param := Parameter[ExecutorDescriptor]{
		ID:     executor.ID.UUID(),
		Target: target,
		Value:  executor.Clone(),
	}
	for i := range c.Executors {
		if c.Executors[i].ID == param.ID {
			c.Executors[i] = param
			return
		}
	}
	c.Executors = append(c.Executors, param)
}

// ClusterAssignment is the cluster a peer has been assigned to during deployment
type ClusterAssignment struct {
	ID      ClusterID `json:"id"`
	Leader  PeerID    `json:"leader"`
	Members []PeerID  `json:"members"`
}

// PeerRuntimeConfiguration is the configuration negotiated at runtime
type PeerRuntimeConfiguration struct {
	ClusterAssignment *ClusterAssignment `json:"clusterAssignment,omitempty"`
}

// Clone returns a deep copy
func (c PeerRuntimeConfiguration) Clone() PeerRuntimeConfiguration {
	out := PeerRuntimeConfiguration{}
	if c.ClusterAssignment != nil {
		assignment := *c.ClusterAssignment
		assignment.Members = cloneSlice(c.ClusterAssignment.Members)
		out.ClusterAssignment = &assignment
	}
	return out
}

// PersistableResource marks PeerRuntimeConfiguration as storable in the database
func (PeerRuntimeConfiguration) PersistableResource() {}
