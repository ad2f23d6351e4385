package gemini

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingAPIKey        = errors.New("gemini: missing API key (set GEMINI_API_KEY or GOOGLE_API_KEY)")
	ErrFileProcessingFailed = errors.New("gemini: uploaded file failed processing")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("api %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.StatusCode, e.Message)
}

// UploadError covers the upload session and file status calls.
// Op is one of "start", "upload", "status".
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("gemini upload failed (%s): %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ReadinessTimeoutError means the uploaded file never became ACTIVE.
type ReadinessTimeoutError struct {
	Name      string
	LastState string
	Waited    time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("uploaded video not ready in time (%s after %s, last state %q)",
		e.Name, e.Waited.Round(time.Millisecond), e.LastState)
}

type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("gemini generate failed (%s): %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// EmptyResponseError means generation succeeded but returned no text.
type EmptyResponseError struct {
	FinishReason string
	BlockReason  string
}

func (e *EmptyResponseError) Error() string {
	msg := "empty response from gemini"
	if e.BlockReason != "" {
		msg += " (blocked: " + e.BlockReason + ")"
	} else if e.FinishReason != "" {
		msg += " (finish reason: " + e.FinishReason + ")"
	}
	return msg
}
