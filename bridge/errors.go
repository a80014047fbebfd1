package bridge

import (
	"errors"
	"fmt"
)

// Kind classifies every error the bridge returns to its caller.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidArgument: a required field was missing or empty at a staging call.
	KindInvalidArgument
	// KindPreconditionFailed: an operation was called before the staging it depends on.
	KindPreconditionFailed
	// KindUpstream: the processor rejected validation or authorization.
	KindUpstream
	// KindInternal: forwarding a value to the processor failed; earlier writes may have landed.
	KindInternal
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrUpstream           = errors.New("upstream error")
	ErrInternal           = errors.New("internal error")
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindPreconditionFailed:
		return "PRECONDITION_FAILED"
	case KindUpstream:
		return "UPSTREAM_ERROR"
	case KindInternal:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindPreconditionFailed:
		return ErrPreconditionFailed
	case KindUpstream:
		return ErrUpstream
	case KindInternal:
		return ErrInternal
	default:
		return nil
	}
}

// Error is the single error type returned by Orchestrator operations.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPreconditionFailed) and friends work.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of err, or KindUnknown when err did not come from the bridge.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func invalidArgument(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Message: fmt.Sprintf(format, args...)}
}

func preconditionFailed(op, format string, args ...any) error {
	return &Error{Kind: KindPreconditionFailed, Op: op, Message: fmt.Sprintf(format, args...)}
}

// upstream keeps the processor's message verbatim.
func upstream(op string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, Message: err.Error(), Err: err}
}

func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Message: err.Error(), Err: err}
}
