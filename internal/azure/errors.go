package azure

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperationID is returned for operation ids that are not canonical UUIDs.
	ErrInvalidOperationID = errors.New("the provided operation ID is not valid")

	// ErrTooManyCandidates is returned when an identification names more than MaxCandidates profiles.
	ErrTooManyCandidates = fmt.Errorf("candidate IDs list must not exceed the size of %d", MaxCandidates)

	// ErrNoCandidates is returned when an identification names no profile at all.
	ErrNoCandidates = errors.New("at least one candidate profile is required")

	// ErrNoSpeech is returned when recognition finished without recognizing speech.
	ErrNoSpeech = errors.New("no speech recognized")
)

// APIError is a non-success response from an Azure endpoint.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("%s failed: responded with %d %s", e.Op, e.StatusCode, msg)
}

// OperationError is returned when a long-running operation ends as failed.
type OperationError struct {
	OperationID string
	Message     string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %s failed: %s", e.OperationID, e.Message)
}
