// Package errors implements the framework-wide error taxonomy (ErrorModel)
// and its single, deterministic mapping to an HTTP status and response body.
// Handlers and services return *Error; only WriteError may format a
// user-visible message for an internal failure.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind is the closed error taxonomy.
type Kind string

const (
	Config             Kind = "Config"
	Database           Kind = "Database"
	Cache              Kind = "Cache"
	MessageBroker      Kind = "MessageBroker"
	AltDb              Kind = "AltDb"
	JWT                Kind = "Jwt"
	PASETO             Kind = "Paseto"
	HTTP               Kind = "Http"
	IO                 Kind = "Io"
	Unauthorized       Kind = "Unauthorized"
	Forbidden          Kind = "Forbidden"
	NotFound           Kind = "NotFound"
	BadRequest         Kind = "BadRequest"
	RateLimitExceeded  Kind = "RateLimitExceeded"
	Conflict           Kind = "Conflict"
	ValidationError    Kind = "ValidationError"
	Locked             Kind = "Locked"
	Internal           Kind = "Internal"
	Other              Kind = "Other"
)

// Error is the framework error type. Cause holds the underlying error for
// server-side logging; it is never serialized to the client.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind, carrying cause for logging.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Unauthorizedf(format string, args ...interface{}) *Error {
	return New(Unauthorized, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...interface{}) *Error {
	return New(Forbidden, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func BadRequestf(format string, args ...interface{}) *Error {
	return New(BadRequest, fmt.Sprintf(format, args...))
}

func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ValidationError, fmt.Sprintf(format, args...))
}

func Lockedf(format string, args ...interface{}) *Error {
	return New(Locked, fmt.Sprintf(format, args...))
}

func Internalf(cause error, format string, args ...interface{}) *Error {
	return Wrap(Internal, fmt.Sprintf(format, args...), cause)
}

// mapping holds the deterministic (status, code) pair for a Kind.
type mapping struct {
	status int
	code   string
}

var mappings = map[Kind]mapping{
	Unauthorized:      {http.StatusUnauthorized, "UNAUTHORIZED"},
	Forbidden:         {http.StatusForbidden, "FORBIDDEN"},
	NotFound:          {http.StatusNotFound, "NOT_FOUND"},
	BadRequest:        {http.StatusBadRequest, "BAD_REQUEST"},
	HTTP:              {http.StatusBadRequest, "HTTP_ERROR"},
	Conflict:          {http.StatusConflict, "CONFLICT"},
	ValidationError:   {http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	RateLimitExceeded: {http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
	Locked:            {http.StatusLocked, "ACCOUNT_LOCKED"},
	JWT:               {http.StatusUnauthorized, "INVALID_TOKEN"},
	PASETO:            {http.StatusUnauthorized, "INVALID_TOKEN"},
	Config:            {http.StatusInternalServerError, "CONFIG_ERROR"},
	Database:          {http.StatusInternalServerError, "DATABASE_ERROR"},
	Cache:             {http.StatusInternalServerError, "CACHE_ERROR"},
	MessageBroker:     {http.StatusInternalServerError, "MESSAGE_BROKER_ERROR"},
	AltDb:             {http.StatusInternalServerError, "ALT_DB_ERROR"},
	IO:                {http.StatusInternalServerError, "IO_ERROR"},
	Internal:          {http.StatusInternalServerError, "INTERNAL_ERROR"},
	Other:             {http.StatusInternalServerError, "OTHER_ERROR"},
}

// genericMessages holds the client-safe text for infrastructure failures;
// the real message is logged server-side via Cause, never sent to the client.
var genericMessages = map[Kind]string{
	Config:        "configuration error",
	Database:      "database operation failed",
	Cache:         "cache operation failed",
	MessageBroker: "message broker operation failed",
	AltDb:         "storage operation failed",
	IO:            "I/O operation failed",
	Internal:      "internal server error",
}

// Response is the canonical JSON error body.
type Response struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Status uint16 `json:"status"`
}

// ToResponse maps an error to its (status, body) per the ErrorModel table.
// Any error that is not *Error is treated as Other.
func ToResponse(err error) (int, Response) {
	fe, ok := err.(*Error)
	if !ok {
		fe = Wrap(Other, "an unexpected error occurred", err)
	}

	m, ok := mappings[fe.Kind]
	if !ok {
		m = mappings[Other]
	}

	message := fe.Message
	if generic, isInfra := genericMessages[fe.Kind]; isInfra {
		// Infrastructure failures never leak driver/internal text to the client.
		message = generic
	}
	if fe.Kind == RateLimitExceeded {
		message = "Too many requests"
	}

	return m.status, Response{
		Error:  message,
		Code:   m.code,
		Status: uint16(m.status),
	}
}

// WriteError is the single conversion point from an error to an HTTP
// response. Only this function formats user-visible messages for internal
// failures; callers elsewhere must not leak driver/db text to clients.
func WriteError(w http.ResponseWriter, err error) {
	status, body := ToResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
