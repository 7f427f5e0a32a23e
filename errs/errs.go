// Package errs is the driver-internal error taxonomy of spec §7, mapped to
// the SANA-II wire-error codes (S2ERR_*/S2WERR_*) at the request boundary.
// It is kept separate from package chip so that queue and unit can both
// depend on it without an import cycle through chip.
package errs

import "fmt"

// Kind is a driver-internal error classification (spec §7).
type Kind int

const (
	None Kind = iota
	NoChip
	InvalidLength
	NoSpace
	InvalidPacket
	Aborted
	BadState
	AlreadyTracked
	NotTracked
	BadArgument
	NullPointer
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case NoChip:
		return "no-chip"
	case InvalidLength:
		return "invalid-length"
	case NoSpace:
		return "no-space"
	case InvalidPacket:
		return "invalid-packet"
	case Aborted:
		return "aborted"
	case BadState:
		return "bad-state"
	case AlreadyTracked:
		return "already-tracked"
	case NotTracked:
		return "not-tracked"
	case BadArgument:
		return "bad-argument"
	case NullPointer:
		return "null-pointer"
	default:
		return "unknown"
	}
}

// SANA-II io_Error codes (os_includes/sana/devices/NewStyleDev.h lineage).
const (
	s2errNoError      = 0
	s2errNoResources  = 30
	s2errMTUExceeded  = 36
	s2errOutOfService = 35
	s2errBadState     = 33
	s2errBadArgument  = 1 // IOERR_BADADDRESS family, generic bad-argument
	s2errBadAddress   = 31
	s2errSoftware     = 32
	ioerrAborted      = -2
)

// SANA-II ios2_WireError codes.
const (
	s2werrGenericError = 1
	s2werrBuffError    = 3
	s2werrUnitOffline  = 10
	s2werrNotConfigured = 14
	s2werrIsConfigured  = 13
	s2werrAlreadyTracked = 16
	s2werrNotTracked     = 17
	s2werrNullPointer    = 19
	s2werrBadMulticast   = 20
)

// Error wraps a Kind; it implements error and also exposes the two SANA-II
// codes a request completion needs.
type Error struct {
	Kind Kind
}

func New(k Kind) *Error { return &Error{Kind: k} }

func (e *Error) Error() string {
	return fmt.Sprintf("ksz8851: %s", e.Kind)
}

// IOError returns the SANA-II io_Error value for this Kind (spec §7
// "Propagation", grounded on devicedriver/device.c's ios2_Req.io_Error
// assignments).
func (e *Error) IOError() int32 {
	switch e.Kind {
	case None:
		return s2errNoError
	case NoSpace:
		return s2errNoResources
	case InvalidLength:
		return s2errMTUExceeded
	case BadState:
		return s2errBadState
	case AlreadyTracked, NotTracked:
		return s2errBadState
	case BadArgument, NullPointer:
		return s2errBadArgument
	case Aborted:
		return ioerrAborted
	case NoChip, InvalidPacket:
		return s2errSoftware
	default:
		return s2errSoftware
	}
}

// WireError returns the secondary SANA-II ios2_WireError value for this
// Kind, grounded on the same device.c call sites as IOError.
func (e *Error) WireError() uint32 {
	switch e.Kind {
	case NoSpace:
		return s2werrBuffError
	case InvalidLength:
		return s2werrBuffError
	case BadState:
		return s2werrNotConfigured
	case AlreadyTracked:
		return s2werrAlreadyTracked
	case NotTracked:
		return s2werrNotTracked
	case BadArgument:
		return s2werrNullPointer
	case NullPointer:
		return s2werrNullPointer
	default:
		return s2werrGenericError
	}
}
