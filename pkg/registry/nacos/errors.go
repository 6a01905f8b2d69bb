package nacos

import "errors"

// Bridge-level sentinel errors (spec.md §4.C, §7).
var (
	// ErrExecutorInitFailed is returned when the Async Runtime Bridge's
	// background goroutine does not signal readiness within the startup
	// timeout.
	ErrExecutorInitFailed = errors.New("nacos: executor failed to become ready")

	// ErrRegistryTimeout is returned when a submitted operation does not
	// complete within nacos.async.timeout. The underlying task is not
	// cancelled; it runs to completion and its result is discarded.
	ErrRegistryTimeout = errors.New("nacos: registry call timed out")

	// ErrExecutorStopped is returned when an operation is submitted after
	// the bridge has been shut down.
	ErrExecutorStopped = errors.New("nacos: executor is stopped")
)

// Kratos Bridge sentinel errors, carried over from the teacher's own
// registry.Registrar implementation (SPEC_FULL §4.F).
var (
	ErrServiceInstanceNameEmpty = errors.New("nacos: ServiceInstance.Name can not be empty")
	ErrInvalidPort              = errors.New("nacos: invalid port number")
)
