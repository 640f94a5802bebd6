package quiz

import (
	"context"
	"errors"
	"fmt"
)

// GenerationError wraps a failure of the generative model call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("generation timed out: %v", e.Err)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Timeout reports whether the call hit its deadline.
func (e *GenerationError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// MalformedResponseError means the model output was not valid JSON after
// stripping code fences.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// InvalidSchemaError means the output was valid JSON but not an object with a
// cuestionario list.
type InvalidSchemaError struct {
	Raw    string
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	return "invalid quiz schema: " + e.Reason
}

// RawResponse returns the model output attached to err, if any.
func RawResponse(err error) (string, bool) {
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed.Raw, true
	}
	var invalid *InvalidSchemaError
	if errors.As(err, &invalid) {
		return invalid.Raw, true
	}
	return "", false
}
