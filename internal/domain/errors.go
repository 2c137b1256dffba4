package domain

import (
	"errors"
	"strings"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ErrorKind classifies a failed exchange call.
type ErrorKind int

const (
	// KindTransport covers timeouts, connection errors, bad HTTP status and malformed bodies.
	KindTransport ErrorKind = iota + 1
	// KindApplication means the exchange answered success:0 with a message.
	KindApplication
	// KindNonceConflict is an application failure caused by a stale nonce.
	// The authenticated client resolves it internally; callers should never see it.
	KindNonceConflict
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	case KindNonceConflict:
		return "nonce_conflict"
	default:
		return "unknown"
	}
}

// APIError is the single error type returned by the exchange clients.
type APIError struct {
	Kind    ErrorKind
	Method  string // Exchange method, e.g. "getInfo" or "depth"
	Message string // Exchange error text or transport detail
	Err     error  // Underlying cause, nil for application errors
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Method)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil && e.Err.Error() != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetriable reports whether the next scheduled tick may succeed without intervention.
func (e *APIError) IsRetriable() bool {
	return e.Kind == KindTransport
}

// NewTransportError creates a transport-level APIError
func NewTransportError(method string, err error) *APIError {
	return &APIError{Kind: KindTransport, Method: method, Message: err.Error(), Err: err}
}

// NewApplicationError creates an APIError for an exchange-reported failure
func NewApplicationError(method, message string) *APIError {
	return &APIError{Kind: KindApplication, Method: method, Message: message}
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// Message returns the exchange's own text for application errors and the full error otherwise.
func Message(err error) string {
	var ae *APIError
	if errors.As(err, &ae) && ae.Kind == KindApplication {
		return ae.Message
	}
	return err.Error()
}

// MsgNoOrders is what the exchange answers to ActiveOrders when nothing is open.
const MsgNoOrders = "no orders"

// IsBenign reports exchange answers that are expected and must not be logged as warnings.
func IsBenign(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) || ae.Kind != KindApplication {
		return false
	}
	return ae.Message == MsgNoOrders
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrMissingCredentials is returned when a signature is requested without key or secret.
	ErrMissingCredentials = errors.New("missing api credentials")

	// ErrPublicOnly is returned by commands when no usable credentials are configured.
	ErrPublicOnly = errors.New("public-only mode: no api credentials")

	// ErrInvalidOrder is returned when an order request fails local validation. Not retriable.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidPair is returned when a currency pair is malformed.
	ErrInvalidPair = errors.New("invalid pair")

	// ErrStoreStopped is returned when the state store is no longer running
	ErrStoreStopped = errors.New("state store stopped")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
