package errutil

import (
	"errors"
	"fmt"
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code       CoreStatus     `json:"code"`
	Message    string         `json:"message"`
	Reason     string         `json:"reason,omitempty"`
	RetryAfter int            `json:"retry_after,omitempty"`
	Details    []Detail       `json:"details,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Err        error          `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

// JSON is the envelope written to HTTP clients. The wrapped cause stays
// server side.
func (e BaseError) JSON() any {
	return map[string]any{
		"success": false,
		"error":   e,
	}
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func WithReason(reason string) Option {
	return func(be *BaseError) { be.Reason = reason }
}

func WithRetryAfter(seconds int) Option {
	return func(be *BaseError) { be.RetryAfter = seconds }
}

func WithMeta(key string, value any) Option {
	return func(be *BaseError) {
		if be.Meta == nil {
			be.Meta = map[string]any{}
		}
		be.Meta[key] = value
	}
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func newWithErr(code CoreStatus, msg string, err error, options []Option) error {
	if err != nil {
		options = append([]Option{WithErr(err)}, options...)
	}
	return New(code, msg, options...)
}

func NotFound(msg string, err error, options ...Option) error {
	return newWithErr(StatusNotFound, msg, err, options)
}

func BadRequest(msg string, err error, options ...Option) error {
	return newWithErr(StatusBadRequest, msg, err, options)
}

func Unauthorized(msg string, err error, options ...Option) error {
	return newWithErr(StatusUnauthorized, msg, err, options)
}

func Forbidden(msg string, err error, options ...Option) error {
	return newWithErr(StatusForbidden, msg, err, options)
}

func InvalidState(msg string, err error, options ...Option) error {
	return newWithErr(StatusInvalidState, msg, err, options)
}

func TooManyRequest(msg string, err error, options ...Option) error {
	return newWithErr(StatusTooManyRequests, msg, err, options)
}

func NoTargetsAvailable(msg string, err error, options ...Option) error {
	return newWithErr(StatusNoTargetsAvailable, msg, err, options)
}

func DispatchFailed(msg string, err error, options ...Option) error {
	return newWithErr(StatusDispatchFailed, msg, err, options)
}

func SettlementSkipped(msg string, err error, options ...Option) error {
	return newWithErr(StatusSettlementSkipped, msg, err, options)
}

// As returns the BaseError carried by err, if any.
func As(err error) (BaseError, bool) {
	var be BaseError
	if errors.As(err, &be) {
		return be, true
	}
	return BaseError{}, false
}

// CodeOf returns the CoreStatus carried by err, StatusUnknown otherwise.
func CodeOf(err error) CoreStatus {
	if be, ok := As(err); ok {
		return be.Code
	}
	return StatusUnknown
}

func Is(err error, code CoreStatus) bool {
	return err != nil && CodeOf(err) == code
}
