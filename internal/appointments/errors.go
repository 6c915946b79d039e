package appointments

import "errors"

var (
	// ErrMissingPatient is returned when the owning patient is not set
	ErrMissingPatient = errors.New("patient id is required")

	// ErrMissingSchedule is returned when date or time is missing
	ErrMissingSchedule = errors.New("appointment date and time are required")

	// ErrInvalidStatus is returned for an unrecognized status value
	ErrInvalidStatus = errors.New("invalid appointment status")

	// ErrAppointmentNotFound is returned when an appointment is not found
	ErrAppointmentNotFound = errors.New("appointment not found")
)
