package auth

import (
	"errors"
	"fmt"
)

// Code identifies an authentication failure category.
type Code string

const (
	CodeInvalidCredential          Code = "invalid-credential"
	CodeUserNotFound               Code = "user-not-found"
	CodeWrongPassword              Code = "wrong-password"
	CodeInvalidEmail               Code = "invalid-email"
	CodeEmailAlreadyInUse          Code = "email-already-in-use"
	CodeWeakPassword               Code = "weak-password"
	CodeAccountExistsWithOtherCred Code = "account-exists-with-different-credential"
	CodeUnknown                    Code = "unknown"
)

// Flow names the user-facing operation an error surfaced from.
type Flow string

const (
	FlowLogin  Flow = "login"
	FlowSignup Flow = "signup"
)

// Error is a classified authentication failure.
type Error struct {
	Code Code
	Err  error
}

// NewError wraps err with a code.
func NewError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s", e.Code)
	}
	return fmt.Sprintf("auth: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify extracts the failure code from err, or CodeUnknown.
func Classify(err error) Code {
	if err == nil {
		return ""
	}
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	if errors.Is(err, ErrMissingToken) {
		return CodeInvalidCredential
	}
	return CodeUnknown
}

// FriendlyMessage returns the message shown to a person for a failure code within a flow.
func FriendlyMessage(flow Flow, code Code) string {
	switch code {
	case CodeInvalidEmail:
		return "Please enter a valid email address."
	case CodeAccountExistsWithOtherCred:
		return "An account already exists with this email. Please sign in with the original method."
	}

	switch flow {
	case FlowSignup:
		switch code {
		case CodeEmailAlreadyInUse:
			return "This email is already registered. Please try logging in."
		case CodeWeakPassword:
			return "Your password is too weak. Please choose a stronger one."
		}
		return "Sign up failed. Please try again later."
	case FlowLogin:
		switch code {
		case CodeUserNotFound, CodeWrongPassword, CodeInvalidCredential:
			return "Invalid email or password. Please try again."
		}
		return "Login failed. Please try again later."
	}

	return "An unexpected error occurred. Please try again."
}
