package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure for the transport boundary.
type Kind int

const (
	// KindInternal is anything unanticipated.
	KindInternal Kind = iota
	// KindInput is a malformed or missing upload.
	KindInput
	// KindProcessing is a transcode, dependency, remote or validation failure.
	KindProcessing
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindProcessing:
		return "processing"
	default:
		return "internal"
	}
}

var (
	ErrMissingFilename = errors.New("missing filename")
	ErrMissingBody     = errors.New("missing upload body")
	ErrEmptyUpload     = errors.New("uploaded file is empty")
)

// Error tags an underlying failure with the stage it happened in and its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

func inputErr(op string, err error) error {
	return &Error{Kind: KindInput, Op: op, Err: err}
}

func processingErr(op string, err error) error {
	return &Error{Kind: KindProcessing, Op: op, Err: err}
}

func internalErr(op string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}
