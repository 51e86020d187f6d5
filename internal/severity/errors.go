package severity

import "errors"

var (
	// ErrUnrecognizedScoreSystem is returned when a score system name is not one of
	// the supported systems.
	ErrUnrecognizedScoreSystem = errors.New("unrecognized score system")

	// ErrUnknownVariable is returned by Lookup for a variable the system does not define.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrMissingRequiredWindow marks a stay with no usable data in its scoring window.
	// Callers recover by scoring the stay as 0.
	ErrMissingRequiredWindow = errors.New("no usable measurement window")

	// ErrInvalidCoefficients is returned by Risk when the coefficient count does not
	// match the system's risk formula.
	ErrInvalidCoefficients = errors.New("invalid coefficients")
)
