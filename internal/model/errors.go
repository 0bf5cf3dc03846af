package model

import "errors"

// Error kinds shared by the stores, the services and the HTTP layer.
// Concrete errors wrap one of these with fmt.Errorf("%w: ...").
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrConflict   = errors.New("conflict")
	ErrCapacity   = errors.New("event is fully booked")
	ErrAuth       = errors.New("authentication failed")
)

// ErrorKind returns a stable name for the kind of err, or "internal".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAuth):
		return "auth"
	}
	return "internal"
}
