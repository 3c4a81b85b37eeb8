package service

import (
	"errors"
	"fmt"
)

// Code is the machine readable kind of a failure, shared with HTTP clients.
type Code string

const (
	ValidationError Code = "VALIDATION_ERROR"
	InvalidID       Code = "INVALID_ID"
	InvalidInput    Code = "INVALID_INPUT"
	NotFound        Code = "NOT_FOUND"
	Unauthorized    Code = "UNAUTHORIZED"
	Forbidden       Code = "FORBIDDEN"
	AlreadyAnswered Code = "ALREADY_ANSWERED"
	Conflict        Code = "CONFLICT"
	RateLimit       Code = "RATE_LIMIT"
	DeliveryFailed  Code = "DELIVERY_FAILED"
	ConfigError     Code = "CONFIG_ERROR"
	ServerError     Code = "SERVER_ERROR"
)

type Error struct {
	Code    Code
	Message string
	// Details lists every violation of a VALIDATION_ERROR.
	Details []string
	// Err is the underlying cause. It is logged, never shown to clients.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func invalid(details []string) *Error {
	return &Error{Code: ValidationError, Message: "validation failed", Details: details}
}

func internal(op string, err error) *Error {
	return &Error{Code: ServerError, Message: "internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

// CodeOf returns the code carried by err, SERVER_ERROR for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ServerError
}
