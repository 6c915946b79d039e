package calls

import "errors"

var (
	// ErrMissingCallID is returned when the provider correlation key is absent
	ErrMissingCallID = errors.New("call id is required")

	// ErrInvalidStatus is returned for an unrecognized status value
	ErrInvalidStatus = errors.New("invalid call status")

	// ErrCallNotFound is returned when a call is not found
	ErrCallNotFound = errors.New("call not found")

	// ErrDuplicateCall is returned when a call id has already been recorded
	ErrDuplicateCall = errors.New("call already exists")

	// ErrInvalidTransition is returned when the call is not in a state the
	// requested update allows
	ErrInvalidTransition = errors.New("call is not in an updatable state")

	// ErrAlreadyCompleted is returned when the post-call payload has already
	// been applied
	ErrAlreadyCompleted = errors.New("post-call result already applied")
)
