// Package errors provides structured errors that travel over gRPC.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Task errors
	CodeTaskNotFound     Code = "TASK_NOT_FOUND"
	CodeTaskIDRequired   Code = "TASK_ID_REQUIRED"
	CodeTaskInvalidInput Code = "TASK_INVALID_INPUT"
	CodeTaskInvalidDay   Code = "TASK_INVALID_DAY"
)

// GRPCCode maps the domain code to a gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeTaskIDRequired,
		CodeTaskInvalidInput,
		CodeTaskInvalidDay:
		return codes.InvalidArgument

	case CodeTaskNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
