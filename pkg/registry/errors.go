package registry

import (
	"errors"
	"fmt"
)

// Kind classifies a ToolError.
type Kind string

const (
	KindDuplicateTool      Kind = "DuplicateTool"
	KindInvalidTool        Kind = "InvalidTool"
	KindToolNotFound       Kind = "ToolNotFound"
	KindAbortedBeforeStart Kind = "AbortedBeforeStart"
	KindInvalidArgument    Kind = "InvalidArgument"
	KindAborted            Kind = "Aborted"
	KindTimeout            Kind = "Timeout"
	KindHandlerFailure     Kind = "HandlerFailure"
)

// JSON-RPC error codes reported to protocol clients.
const (
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeRequestTimeout   = -32001
	CodeRequestCancelled = -32800
)

// Sentinels for use with errors.Is.
var (
	ErrDuplicateTool      = &ToolError{Kind: KindDuplicateTool}
	ErrInvalidTool        = &ToolError{Kind: KindInvalidTool}
	ErrToolNotFound       = &ToolError{Kind: KindToolNotFound}
	ErrAbortedBeforeStart = &ToolError{Kind: KindAbortedBeforeStart}
	ErrInvalidArgument    = &ToolError{Kind: KindInvalidArgument}
	ErrAborted            = &ToolError{Kind: KindAborted}
	ErrTimeout            = &ToolError{Kind: KindTimeout}
	ErrHandlerFailure     = &ToolError{Kind: KindHandlerFailure}
)

// ToolError is the single structured failure surfaced by the registry.
type ToolError struct {
	Kind    Kind
	Tool    string
	Message string

	// Argument is set for KindInvalidArgument.
	Argument string

	// Reason is the cancellation cause for KindAborted.
	Reason any

	cause error
}

func (e *ToolError) Error() string {
	return e.Message
}

// Code returns the JSON-RPC error code for the error's kind.
func (e *ToolError) Code() int {
	switch e.Kind {
	case KindDuplicateTool, KindInvalidTool:
		return CodeInvalidRequest
	case KindToolNotFound:
		return CodeMethodNotFound
	case KindInvalidArgument:
		return CodeInvalidParams
	case KindTimeout:
		return CodeRequestTimeout
	case KindAborted:
		return CodeRequestCancelled
	default:
		return CodeInternalError
	}
}

// Is matches any ToolError of the same kind.
func (e *ToolError) Is(target error) bool {
	t, ok := target.(*ToolError)
	return ok && t.Kind == e.Kind
}

// Unwrap returns the validator diagnostic or handler error, if any.
func (e *ToolError) Unwrap() error {
	return e.cause
}

// KindOf returns the kind of err, or "" if err is not a ToolError.
func KindOf(err error) Kind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}

	return ""
}

func duplicateTool(name string) *ToolError {
	return &ToolError{
		Kind:    KindDuplicateTool,
		Tool:    name,
		Message: fmt.Sprintf("tool %q is already registered", name),
	}
}

func invalidTool(name, problem string) *ToolError {
	return &ToolError{
		Kind:    KindInvalidTool,
		Tool:    name,
		Message: fmt.Sprintf("tool %q is invalid: %s", name, problem),
	}
}

// NotFound reports an unregistered tool name.
func NotFound(name string) *ToolError {
	return &ToolError{
		Kind:    KindToolNotFound,
		Tool:    name,
		Message: fmt.Sprintf("tool %q not found", name),
	}
}

func abortedBeforeStart(name string, reason any) *ToolError {
	return &ToolError{
		Kind:    KindAbortedBeforeStart,
		Tool:    name,
		Message: fmt.Sprintf("tool %q execution was aborted before starting", name),
		Reason:  reason,
	}
}

func invalidArgument(name, arg string, cause error) *ToolError {
	return &ToolError{
		Kind:     KindInvalidArgument,
		Tool:     name,
		Argument: arg,
		Message:  fmt.Sprintf("invalid argument %q for tool %q: %s", arg, name, cause),
		cause:    cause,
	}
}

func aborted(name string, reason any) *ToolError {
	return &ToolError{
		Kind:    KindAborted,
		Tool:    name,
		Message: fmt.Sprintf("tool %q execution was aborted: %v", name, reason),
		Reason:  reason,
	}
}

func timedOut(name string) *ToolError {
	return &ToolError{
		Kind:    KindTimeout,
		Tool:    name,
		Message: fmt.Sprintf("tool %q execution timed out", name),
	}
}

func handlerFailure(name string, cause error) *ToolError {
	return &ToolError{
		Kind:    KindHandlerFailure,
		Tool:    name,
		Message: fmt.Sprintf("tool %q execution failed: %s", name, cause),
		cause:   cause,
	}
}
