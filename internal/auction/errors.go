package auction

import (
	"errors"
	"fmt"
)

// Stable rejection codes surfaced to callers. HTTP status mapping lives in
// pkg/response; the engine only deals in codes.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeNotActive     = "NOT_ACTIVE"
	CodeExpired       = "EXPIRED"
	CodeTooLow        = "BID_TOO_LOW"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeConflict      = "CONFLICT"
	CodeProxyRejected = "PROXY_REJECTED"
)

// Error is a coded rejection from the engine. Every validation error is
// produced before any write, so callers may retry verbatim after adjusting
// input; CONFLICT indicates a transient transactional race and is safe to
// retry immediately.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorCode satisfies the coded-error interface pkg/response dispatches on.
func (e *Error) ErrorCode() string {
	return e.Code
}

func notFoundError(auctionID string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("Auction %s not found", auctionID)}
}

func notActiveError(status string) *Error {
	return &Error{Code: CodeNotActive, Message: fmt.Sprintf("Auction is not active. Current status: %s.", status)}
}

func expiredError() *Error {
	return &Error{Code: CodeExpired, Message: "Auction has ended"}
}

func tooLowError(currentPrice, minIncrement float64) *Error {
	return &Error{
		Code: CodeTooLow,
		Message: fmt.Sprintf("Bid must be at least %.2f (current price %.2f + minimum increment %.2f)",
			currentPrice+minIncrement, currentPrice, minIncrement),
	}
}

func invalidInputError(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}

func conflictError(attempts int) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf("Operation conflicted with concurrent writers after %d attempts", attempts)}
}

func proxyRejectedError(currentPrice float64) *Error {
	return &Error{Code: CodeProxyRejected, Message: fmt.Sprintf("Proxy bid maximum must be higher than the current price of %.2f", currentPrice)}
}

// CodeOf extracts the engine error code from err, or "" if err is not an
// engine rejection.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
