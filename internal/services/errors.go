package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindUnauthorized       ErrorKind = "unauthorized"
	KindValidation         ErrorKind = "validation_error"
	KindRateLimited        ErrorKind = "rate_limited"
	KindNoLinkedProfile    ErrorKind = "no_linked_profile"
	KindClaimRejected      ErrorKind = "claim_rejected"
	KindDeploymentFailed   ErrorKind = "deployment_failed"
	KindClaimOnChainFailed ErrorKind = "claim_on_chain_failed"
	KindAdapterUnavailable ErrorKind = "adapter_unavailable"
	KindNotFound           ErrorKind = "not_found"
)

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a user-visible failure with a machine-readable kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Details []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "authentication required"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrRateLimited        = &Error{Kind: KindRateLimited, Message: "launch limit reached, try again later"}
	ErrNoLinkedProfile    = &Error{Kind: KindNoLinkedProfile, Message: "no social profile linked to this account"}
	ErrClaimRejected      = &Error{Kind: KindClaimRejected, Message: "token not found, already claimed, not deployed, or you are not the target profile owner"}
	ErrDeploymentFailed   = &Error{Kind: KindDeploymentFailed, Message: "token deployment failed"}
	ErrClaimOnChainFailed = &Error{Kind: KindClaimOnChainFailed, Message: "failed to redirect rewards on-chain"}
	ErrAdapterUnavailable = &Error{Kind: KindAdapterUnavailable, Message: "launch protocol unavailable"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
)

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" for errors not raised by this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
