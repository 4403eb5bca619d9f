package permission

import "errors"

var (
	// ErrCapacityExceeded is returned when bitmask mode has no free bit left.
	ErrCapacityExceeded = errors.New("permission capacity exceeded (31 bits)")
	// ErrDuplicateBit is returned when an explicit bit is already owned by another permission.
	ErrDuplicateBit = errors.New("permission bit already assigned")
	// ErrBitReassignment is returned when a registered permission is asked to move to another bit.
	ErrBitReassignment = errors.New("permission bit cannot be reassigned")
	// ErrInvalidBit is returned for explicit bits outside 0..30.
	ErrInvalidBit = errors.New("permission bit out of range")
	// ErrMalformedPermission is returned for empty names, empty segments, or whitespace.
	ErrMalformedPermission = errors.New("malformed permission")
	// ErrPermissionNotRegistered is returned when a frozen registry sees an unknown name.
	ErrPermissionNotRegistered = errors.New("permission not registered")
	// ErrRegistryFrozen is returned by registrations after Freeze.
	ErrRegistryFrozen = errors.New("registry frozen")
	// ErrEmptyRoleName is returned when a role is created without a name.
	ErrEmptyRoleName = errors.New("role name empty")
	// ErrUnknownRole is returned when an operation references a role that does not exist.
	ErrUnknownRole = errors.New("unknown role")
	// ErrInvalidMaskSize is returned by DecodeMask for inputs that are not 4 bytes.
	ErrInvalidMaskSize = errors.New("invalid mask size")
)
