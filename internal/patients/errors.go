package patients

import "errors"

var (
	// ErrInvalidName is returned when first or last name is missing
	ErrInvalidName = errors.New("first and last name are required")

	// ErrMissingPhone is returned when the phone number is missing
	ErrMissingPhone = errors.New("phone number is required")

	// ErrInvalidGender is returned for an unrecognized gender value
	ErrInvalidGender = errors.New("gender must be male, female, or other")

	// ErrPatientNotFound is returned when a patient is not found
	ErrPatientNotFound = errors.New("patient not found")

	// ErrDuplicateMedicalID is returned when a medical ID is already taken
	ErrDuplicateMedicalID = errors.New("medical id already exists")
)
