package connector

import (
	"errors"
	"fmt"
)

// ErrUnknownService is returned by the registry for a name that was never
// registered (or was registered disabled).
var ErrUnknownService = errors.New("unknown service")

// ErrNotSupported is the sentinel wrapped by CapabilityError; check with
// errors.Is.
var ErrNotSupported = errors.New("operation not supported")

// CapabilityError reports that a connector does not implement a requested
// optional operation. This is a normal, expected outcome for connectors
// that declare a subset of the contract, not a bug.
type CapabilityError struct {
	Service    string
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s not supported for this service", e.Service, e.Capability)
}

func (e *CapabilityError) Unwrap() error { return ErrNotSupported }

// UnsupportedResourceError reports a ListResources call with a kind the
// connector does not serve.
type UnsupportedResourceError struct {
	Service string
	Kind    string
}

func (e *UnsupportedResourceError) Error() string {
	return fmt.Sprintf("%s: unsupported resource type %q", e.Service, e.Kind)
}

func (e *UnsupportedResourceError) Unwrap() error { return ErrNotSupported }

// notSupported builds the standard error for an undeclared capability.
func notSupported(service string, cap Capability) error {
	return &CapabilityError{Service: service, Capability: cap}
}
