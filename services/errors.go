package services

import "net/http"

type ErrorKind string

const (
	KindInvalidProduct     ErrorKind = "invalid_product"
	KindAlreadyEnrolled    ErrorKind = "already_enrolled"
	KindGatewayUnavailable ErrorKind = "gateway_unavailable"
	KindInvalidSignature   ErrorKind = "invalid_signature"
	KindNotFound           ErrorKind = "not_found"
	KindStorageFault       ErrorKind = "storage_fault"
	KindInvalidRequest     ErrorKind = "invalid_request"
)

var kindStatus = map[ErrorKind]int{
	KindInvalidProduct:     http.StatusBadRequest,
	KindAlreadyEnrolled:    http.StatusConflict,
	KindGatewayUnavailable: http.StatusServiceUnavailable,
	KindInvalidSignature:   http.StatusBadRequest,
	KindNotFound:           http.StatusNotFound,
	KindStorageFault:       http.StatusInternalServerError,
	KindInvalidRequest:     http.StatusBadRequest,
}

// ServiceError represents a typed error with an HTTP status code.
type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same call may succeed later.
func (e *ServiceError) Retryable() bool {
	return e.Kind == KindGatewayUnavailable || e.Kind == KindStorageFault
}

func newServiceError(kind ErrorKind, message string, err error) *ServiceError {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &ServiceError{Kind: kind, StatusCode: status, Message: message, Err: err}
}
