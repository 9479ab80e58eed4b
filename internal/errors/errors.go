// Package errors holds droidbench's sentinel errors and the typed errors
// that carry device, tool and timeout context.
//
// Expected failures of device orchestration (missing tool, boot timeout,
// unsupported platform) are ordinary values: callers compare them with
// errors.Is against the sentinels below. Only corrupt persisted state is
// reported as ErrConfigCorrupt and treated as a fault.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-exported so callers need only this package.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// SDK and tooling sentinel errors
var (
	// ErrSDKNotFound indicates that no Android SDK root could be located.
	ErrSDKNotFound = New("android sdk not found")
	// ErrPrerequisitesMissing indicates that one or more required tools are unavailable.
	ErrPrerequisitesMissing = New("required tools missing")
	// ErrToolFailed indicates that a control tool exited with a non-zero status.
	ErrToolFailed = New("tool invocation failed")
)

// Provisioning sentinel errors
var (
	// ErrUnsupportedPlatform indicates a platform version outside the supported set.
	ErrUnsupportedPlatform = New("unsupported platform version")
	// ErrProvisionFailed indicates the system image could not be installed.
	ErrProvisionFailed = New("system image provisioning failed")
	// ErrDefinitionNotFound indicates that a device definition does not exist.
	ErrDefinitionNotFound = New("device definition not found")
	// ErrConfigCorrupt indicates a persisted definition configuration could not be read.
	ErrConfigCorrupt = New("device configuration unreadable")
)

// Device lifecycle sentinel errors
var (
	// ErrDiscoveryTimeout indicates no new device identifier appeared after launch.
	ErrDiscoveryTimeout = New("timed out waiting for device identifier")
	// ErrBootTimeout indicates the device never reported a completed boot.
	ErrBootTimeout = New("timed out waiting for device boot")
	// ErrDeviceNotFound indicates no active record exists for a launch or serial.
	ErrDeviceNotFound = New("device not found")
	// ErrInvalidTransition indicates an illegal device status change.
	ErrInvalidTransition = New("invalid device status transition")
)

type baseError struct {
	message string
	cause   error
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// DeviceError represents errors related to a device instance or definition.
//
// Example:
//
//	err := errors.NewDeviceError("boot not confirmed", errors.ErrBootTimeout)
//	err = err.WithSerial("emulator-5556").WithDefinition("test_android_34")
//	fmt.Println(err) // "device error [serial=emulator-5556, definition=test_android_34]: boot not confirmed: timed out waiting for device boot"
type DeviceError struct {
	baseError
	Serial     string
	Definition string
}

// NewDeviceError creates a new DeviceError.
func NewDeviceError(message string, cause error) *DeviceError {
	return &DeviceError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithSerial adds a device identifier to the error context.
func (e *DeviceError) WithSerial(serial string) *DeviceError {
	e.Serial = serial
	return e
}

// WithDefinition adds a device definition name to the error context.
func (e *DeviceError) WithDefinition(name string) *DeviceError {
	e.Definition = name
	return e
}

// Error returns the formatted error message.
func (e *DeviceError) Error() string {
	var parts []string
	if e.Serial != "" {
		parts = append(parts, fmt.Sprintf("serial=%s", e.Serial))
	}
	if e.Definition != "" {
		parts = append(parts, fmt.Sprintf("definition=%s", e.Definition))
	}

	prefix := "device error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("device error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *DeviceError) Is(target error) bool {
	if _, ok := target.(*DeviceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ToolError represents a failed invocation of an external control tool.
// ToolError always matches ErrToolFailed.
//
// Example:
//
//	err := errors.NewToolError("avdmanager", 1, "Error: Package path is not valid")
type ToolError struct {
	baseError
	Tool     string
	ExitCode int
	Output   string
}

// NewToolError creates a new ToolError.
func NewToolError(tool string, exitCode int, output string) *ToolError {
	return &ToolError{
		baseError: baseError{
			message: fmt.Sprintf("%s exited with code %d", tool, exitCode),
			cause:   ErrToolFailed,
		},
		Tool:     tool,
		ExitCode: exitCode,
		Output:   strings.TrimSpace(output),
	}
}

// Error returns the formatted error message.
func (e *ToolError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("tool error [%s]: %s: %s", e.Tool, e.message, e.Output)
	}
	return fmt.Sprintf("tool error [%s]: %s", e.Tool, e.message)
}

// Is checks if this error matches the target.
func (e *ToolError) Is(target error) bool {
	if _, ok := target.(*ToolError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("definition", "test_android_34")
//	fmt.Println(err) // "definition 'test_android_34' not found"
type NotFoundError struct {
	ResourceType string
	ResourceID   string
	cause        error
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Unwrap returns the underlying cause.
func (e *NotFoundError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("port must be even").WithField("port").WithValue(5555)
type ValidationError struct {
	Message string
	Field   string
	Value   any
	cause   error
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	msg := "validation error"
	if e.Field != "" {
		msg = fmt.Sprintf("validation error [%s]", e.Field)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.Value != nil {
		msg = fmt.Sprintf("%s (got: %v)", msg, e.Value)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for boot", 120*time.Second)
//	fmt.Println(err) // "timeout error: waiting for boot (timeout: 2m0s)"
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
	cause     error
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Timeout: timeout}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Timeout)
}

// Unwrap returns the underlying cause.
func (e *TimeoutError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// IsTimeout reports whether err represents a timed-out operation.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var timeout *TimeoutError
	return As(err, &timeout) || Is(err, ErrDiscoveryTimeout) || Is(err, ErrBootTimeout)
}

// IsNotFound reports whether err represents a missing resource.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *NotFoundError
	return As(err, &notFound) || Is(err, ErrDefinitionNotFound) || Is(err, ErrDeviceNotFound)
}
