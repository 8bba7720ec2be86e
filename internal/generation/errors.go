package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when reply generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate reply")

	// ErrInvalidResponse is returned when the model response is empty or malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptyPrompt is returned when an empty prompt is supplied
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)
