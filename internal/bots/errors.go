package bots

import "errors"

var (
	// ErrMissingName is returned when the bot name is not set
	ErrMissingName = errors.New("bot name is required")

	// ErrMissingPrompt is returned when the system prompt is not set
	ErrMissingPrompt = errors.New("bot prompt is required")

	// ErrInvalidDomain is returned for an unrecognized domain value
	ErrInvalidDomain = errors.New("invalid bot domain")

	// ErrBotNotFound is returned when a bot is not found
	ErrBotNotFound = errors.New("bot not found")

	// ErrDuplicateProviderID is returned when the provider id is already mirrored
	ErrDuplicateProviderID = errors.New("bot already mirrored for provider id")
)
