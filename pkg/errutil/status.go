package errutil

import "net/http"

type CoreStatus string

const (
	StatusUnknown            CoreStatus = "UNKNOWN"
	StatusBadRequest         CoreStatus = "BAD_REQUEST"
	StatusUnauthorized       CoreStatus = "UNAUTHORIZED"
	StatusForbidden          CoreStatus = "FORBIDDEN"
	StatusNotFound           CoreStatus = "NOT_FOUND"
	StatusInvalidState       CoreStatus = "INVALID_STATE"
	StatusTooManyRequests    CoreStatus = "RATE_LIMITED"
	StatusNoTargetsAvailable CoreStatus = "NO_TARGETS_AVAILABLE"
	StatusDispatchFailed     CoreStatus = "DISPATCH_FAILED"
	StatusSettlementSkipped  CoreStatus = "SETTLEMENT_SKIPPED"
	StatusInternal           CoreStatus = "INTERNAL"
)

// HTTPStatus maps a CoreStatus onto the response code the API returns.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound, StatusNoTargetsAvailable:
		return http.StatusNotFound
	case StatusInvalidState:
		return http.StatusConflict
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusDispatchFailed:
		return http.StatusBadGateway
	case StatusSettlementSkipped:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
