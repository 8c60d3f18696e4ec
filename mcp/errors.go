package mcp

import (
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// ErrorKind classifies a failed tool call.
type ErrorKind int

const (
	// KindInternal is any failure not attributable to the caller.
	KindInternal ErrorKind = iota
	// KindInvalidParams covers bad arguments, rejected paths, wrong
	// extensions, and missing or unreadable files.
	KindInvalidParams
	// KindMethodNotFound is a call to an unregistered tool.
	KindMethodNotFound
)

// JSON-RPC 2.0 error codes.
const (
	CodeMethodNotFound int64 = -32601
	CodeInvalidParams  int64 = -32602
	CodeInternalError  int64 = -32603
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidParams:
		return "InvalidParams"
	case KindMethodNotFound:
		return "MethodNotFound"
	default:
		return "InternalError"
	}
}

// Code returns the JSON-RPC error code for the kind.
func (k ErrorKind) Code() int64 {
	switch k {
	case KindInvalidParams:
		return CodeInvalidParams
	case KindMethodNotFound:
		return CodeMethodNotFound
	default:
		return CodeInternalError
	}
}

// ToolError is the error returned by every failed tool call.
type ToolError struct {
	Kind    ErrorKind
	Message string
	Err     error // underlying cause, may be nil
}

func (e *ToolError) Error() string {
	return e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// WireError converts e to the JSON-RPC error frame sent to the client.
func (e *ToolError) WireError() *jsonrpc.Error {
	return &jsonrpc.Error{Code: e.Kind.Code(), Message: e.Message}
}

func invalidParams(format string, args ...any) *ToolError {
	return &ToolError{Kind: KindInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func methodNotFound(name string) *ToolError {
	return &ToolError{Kind: KindMethodNotFound, Message: "Unknown tool: " + name}
}

func internalError(err error, format string, args ...any) *ToolError {
	return &ToolError{
		Kind:    KindInternal,
		Message: fmt.Sprintf(format, args...) + ": " + err.Error(),
		Err:     err,
	}
}

// asToolError returns err as a *ToolError, classifying anything else as an
// internal failure of the named tool.
func asToolError(name string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return internalError(err, "Error executing tool %s", name)
}
