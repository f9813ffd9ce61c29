// Unified error handling for the Nightwatch mount controller
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Motion errors
	ErrLimitExceeded    ErrorCode = "LIMIT_EXCEEDED"
	ErrStallDetected    ErrorCode = "STALL_DETECTED"
	ErrUnsafeModeSwitch ErrorCode = "UNSAFE_MODE_SWITCH"

	// Command rejections
	ErrOutOfLimits ErrorCode = "OUT_OF_LIMITS"
	ErrNoPierSide  ErrorCode = "NO_PIER_SIDE"
	ErrMountState  ErrorCode = "MOUNT_STATE"

	// Hardware errors
	ErrEncoderFault ErrorCode = "ENCODER_FAULT"
	ErrDriverFault  ErrorCode = "DRIVER_FAULT"

	// Persisted state errors
	ErrPersist ErrorCode = "PERSIST"
)

// MountError is the unified error type for the mount controller
type MountError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Axis names the axis involved, when one is ("axis1", "axis2")
	Axis string

	// Err wraps the underlying error
	Err error

	// Context provides additional key/value context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *MountError) Error() string {
	if e.Axis != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Axis, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *MountError) Unwrap() error {
	return e.Err
}

// SetAxis sets the axis name
func (e *MountError) SetAxis(axis string) *MountError {
	e.Axis = axis
	return e
}

// SetContext adds additional context
func (e *MountError) SetContext(key string, value interface{}) *MountError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new MountError
func New(code ErrorCode, message string) *MountError {
	return &MountError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new MountError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *MountError {
	return &MountError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *MountError {
	return &MountError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Code extracts the ErrorCode from an error chain, or "" if none
func Code(err error) ErrorCode {
	var me *MountError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}

// As finds the first error in err's chain matching target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Config errors

// ConfigSectionError creates an error for a missing config section
func ConfigSectionError(section string) *MountError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetContext("section", section)
}

// ConfigOptionError creates an error for a missing config option
func ConfigOptionError(section, option string) *MountError {
	return New(ErrConfigOption, fmt.Sprintf("option '%s' not found in section '%s'", option, section)).
		SetContext("section", section).
		SetContext("option", option)
}

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(section, option, reason string) *MountError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetContext("section", section).
		SetContext("option", option)
}

// ConfigTypeError creates an error for config type conversion failure
func ConfigTypeError(section, option, value, targetType string, err error) *MountError {
	return Wrap(err, ErrConfigType, fmt.Sprintf("option '%s' in section '%s': failed to parse '%s' as %s", option, section, value, targetType)).
		SetContext("section", section).
		SetContext("option", option)
}

// Motion errors

// LimitExceededError reports a target or in-motion position outside soft limits
func LimitExceededError(axis string, positionDeg, minDeg, maxDeg float64) *MountError {
	return Newf(ErrLimitExceeded, "position %.4f deg outside [%.2f, %.2f]", positionDeg, minDeg, maxDeg).
		SetAxis(axis).
		SetContext("position", positionDeg).
		SetContext("min", minDeg).
		SetContext("max", maxDeg)
}

// StallError reports commanded/encoder divergence beyond the stall threshold
func StallError(axis string, commandedSteps, actualSteps int64) *MountError {
	return Newf(ErrStallDetected, "commanded %d steps but encoder reports %d", commandedSteps, actualSteps).
		SetAxis(axis).
		SetContext("commanded", commandedSteps).
		SetContext("actual", actualSteps)
}

// UnsafeModeSwitchError reports a microstep mode switch attempted at speed
func UnsafeModeSwitchError(axis string, velocityStepsPerSec float64) *MountError {
	return Newf(ErrUnsafeModeSwitch, "microstep mode switch rejected at %.1f steps/s", velocityStepsPerSec).
		SetAxis(axis)
}

// EncoderFaultError reports an unreadable or implausible encoder reading
func EncoderFaultError(axis string, err error) *MountError {
	return Wrap(err, ErrEncoderFault, "encoder read failed").SetAxis(axis)
}

// Command rejections

// OutOfLimitsError rejects a target outside the reachable range
func OutOfLimitsError(reason string) *MountError {
	return New(ErrOutOfLimits, reason)
}

// NoPierSideError rejects a target no pier side can reach
func NoPierSideError(haDeg float64) *MountError {
	return Newf(ErrNoPierSide, "no pier side can reach hour angle %.2f deg", haDeg).
		SetContext("hour_angle", haDeg)
}

// MountStateError rejects a command invalid in the current mount state
func MountStateError(state, command string) *MountError {
	return Newf(ErrMountState, "command %s not valid while %s", command, state).
		SetContext("state", state)
}
