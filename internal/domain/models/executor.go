package models

import (
	"github.com/pkg/errors"
)

// Engine is the container engine used by a container executor
type Engine string

const (
	EngineDocker Engine = "docker"
	EnginePodman Engine = "podman"
)

// ExecutorKind distinguishes executables from containers
type ExecutorKind string

const (
	ExecutorKindExecutable ExecutorKind = "executable"
	ExecutorKindContainer  ExecutorKind = "container"
)

// Executor validation errors
var (
	ErrEmptyContainerImage       = errors.New("container image must not be empty")
	ErrEmptyEnvName              = errors.New("container env name must not be empty")
	ErrUnknownEngine             = errors.New("unknown container engine")
	ErrEmptyContainerVolume      = errors.New("container volume must not be empty")
	ErrEmptyContainerDevice      = errors.New("container device must not be empty")
	ErrEmptyContainerPortSpec    = errors.New("container port spec must not be empty")
	ErrEmptyContainerArgument    = errors.New("container command argument must not be empty")
	ErrResultsURLTooShort        = errors.New("results url must not be empty")
	ErrEmptyPreconditionDeviceID = errors.New("precondition device id must not be empty")
)

// ContainerEnvironmentVariable is a single environment variable passed to a container
type ContainerEnvironmentVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewContainerEnvironmentVariable validates and creates an environment variable
func NewContainerEnvironmentVariable(name, value string) (ContainerEnvironmentVariable, error) {
	if name == "" {
		return ContainerEnvironmentVariable{}, ErrEmptyEnvName
	}
	return ContainerEnvironmentVariable{Name: name, Value: value}, nil
}

// DevicePrecondition names a device that has to be in the given clamp states
// before the container starts
type DevicePrecondition struct {
	DeviceID string `json:"deviceId"`
	Clamp15  string `json:"clamp15"`
	Clamp30  string `json:"clamp30"`
}

// NewDevicePrecondition validates and creates a device precondition
func NewDevicePrecondition(deviceID, clamp15, clamp30 string) (DevicePrecondition, error) {
	if deviceID == "" {
		return DevicePrecondition{}, ErrEmptyPreconditionDeviceID
	}
	return DevicePrecondition{DeviceID: deviceID, Clamp15: clamp15, Clamp30: clamp30}, nil
}

// Precondition groups what has to hold before a container executor runs
type Precondition struct {
	DevicePreconditions []DevicePrecondition `json:"devicePreconditions"`
}

// Clone returns a deep copy
func (p Precondition) Clone() Precondition {
	return Precondition{DevicePreconditions: cloneSlice(p.DevicePreconditions)}
}

// ContainerSpec holds the settings of a container executor.
// An empty Name lets the engine pick one; an empty Command runs the image default.
type ContainerSpec struct {
	Engine        Engine                         `json:"engine"`
	Name          string                         `json:"name,omitempty"`
	Image         string                         `json:"image"`
	Volumes       []string                       `json:"volumes"`
	Devices       []string                       `json:"devices"`
	Envs          []ContainerEnvironmentVariable `json:"envs"`
	Ports         []string                       `json:"ports"`
	Command       string                         `json:"command,omitempty"`
	Args          []string                       `json:"args"`
	Preconditions Precondition                   `json:"preconditions"`
	ResultsURL    string                         `json:"resultsUrl"`
}

func (c *ContainerSpec) validate() error {
	switch c.Engine {
	case EngineDocker, EnginePodman:
	default:
		return errors.WithMessagef(ErrUnknownEngine, "'%s'", c.Engine)
	}
	if c.Image == "" {
		return ErrEmptyContainerImage
	}
	if err := noEmpty(c.Volumes, ErrEmptyContainerVolume); err != nil {
		return err
	}
	if err := noEmpty(c.Devices, ErrEmptyContainerDevice); err != nil {
		return err
	}
	if err := noEmpty(c.Ports, ErrEmptyContainerPortSpec); err != nil {
		return err
	}
	if err := noEmpty(c.Args, ErrEmptyContainerArgument); err != nil {
		return err
	}
	for _, env := range c.Envs {
		if env.Name == "" {
			return ErrEmptyEnvName
		}
	}
	for _, p := range c.Preconditions.DevicePreconditions {
		if p.DeviceID == "" {
			return ErrEmptyPreconditionDeviceID
		}
	}
	if len(c.ResultsURL) < 1 {
		return ErrResultsURLTooShort
	}
	return nil
}

func noEmpty(values []string, err error) error {
	for i, v := range values {
		if v == "" {
			return errors.WithMessagef(err, "entry %d", i)
		}
	}
	return nil
}

// ExecutorDescriptor describes something a peer runs on behalf of a cluster
type ExecutorDescriptor struct {
	ID        ExecutorID     `json:"id"`
	Kind      ExecutorKind   `json:"kind"`
	Container *ContainerSpec `json:"container,omitempty"`
}

// Validate checks the executor settings
func (e ExecutorDescriptor) Validate() error {
	switch e.Kind {
	case ExecutorKindExecutable:
		return nil
	case ExecutorKindContainer:
		if e.Container == nil {
			return errors.Errorf("executor %s: container settings missing", e.ID)
		}
		return errors.WithMessagef(e.Container.validate(), "executor %s", e.ID)
	default:
		return errors.Errorf("executor %s: unknown kind '%s'", e.ID, e.Kind)
	}
}

// Clone returns a deep copy
func (e ExecutorDescriptor) Clone() ExecutorDescriptor {
	out := e
	if e.Container != nil {
		c := *e.Container
		c.Volumes = cloneSlice(e.Container.Volumes)
		c.Devices = cloneSlice(e.Container.Devices)
		c.Envs = cloneSlice(e.Container.Envs)
		c.Ports = cloneSlice(e.Container.Ports)
		c.Args = cloneSlice(e.Container.Args)
		c.Preconditions = e.Container.Preconditions.Clone()
		out.Container = &c
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
