package links

import (
	"fmt"
	"net/http"

	"voucherwatch/internal/models"
)

// ServiceError represents errors from the links service with HTTP context
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Error constructors for common service errors

func NewInvalidURLError(err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidURL,
		Message:    "Invalid CDC voucher URL",
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInvalidVoucherIDError(err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidVoucherID,
		Message:    "Voucher ID must be alphanumeric",
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInvalidLinkIDError(err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidLinkID,
		Message:    "Link ID must be a UUID",
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewLinkExistsError() *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeLinkExists,
		Message:    "Link already exists",
		StatusCode: http.StatusConflict,
	}
}

func NewLinkNotFoundError() *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeLinkNotFound,
		Message:    "Link not found",
		StatusCode: http.StatusNotFound,
	}
}

func NewVoucherNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeVoucherNotFound,
		Message:    "Voucher group not found",
		StatusCode: http.StatusNotFound,
		Err:        err,
	}
}

func NewUpstreamError(err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeUpstreamError,
		Message:    "Unable to load voucher details. Please try again later.",
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInternalError,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
