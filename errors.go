package goRBAC

import (
	"errors"

	"github.com/MrEthical07/goRBAC/permission"
)

var (
	// ErrCapacityExceeded is returned when bitmask mode has used all 31 bits.
	ErrCapacityExceeded = permission.ErrCapacityExceeded
	// ErrDuplicateBit is returned when an explicit bit is already owned.
	ErrDuplicateBit = permission.ErrDuplicateBit
	// ErrBitReassignment is returned when a registered permission is moved to another bit.
	ErrBitReassignment = permission.ErrBitReassignment
	// ErrInvalidBit is returned for explicit bits outside 0..30.
	ErrInvalidBit = permission.ErrInvalidBit
	// ErrMalformedPermission is returned for invalid permission names or patterns.
	ErrMalformedPermission = permission.ErrMalformedPermission
	// ErrEmptyRoleName is returned when a role is created without a name.
	ErrEmptyRoleName = permission.ErrEmptyRoleName
	// ErrUnknownRole is returned when an operation references a missing role.
	ErrUnknownRole = permission.ErrUnknownRole
	// ErrPermissionNotRegistered is returned for unknown names where registration is required.
	ErrPermissionNotRegistered = permission.ErrPermissionNotRegistered

	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidState is returned by Deserialize for inconsistent snapshots.
	ErrInvalidState = errors.New("invalid state")
	// ErrEmptyUserID is returned by deny-ledger operations without a user.
	ErrEmptyUserID = errors.New("user id empty")
	// ErrBuilderUsed is returned when a Builder is built twice.
	ErrBuilderUsed = errors.New("builder already used")
)
