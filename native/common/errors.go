package common

import "errors"

// Error kinds shared by every protocol module. Module level errors wrap exactly
// one of these so callers can classify failures with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrCapacity   = errors.New("capacity error")
	ErrState      = errors.New("state error")
	ErrArithmetic = errors.New("arithmetic error")
)

// Kind classifies err into a stable label used by metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModulePaused):
		return "paused"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrArithmetic):
		return "arithmetic"
	default:
		return "collaborator"
	}
}
