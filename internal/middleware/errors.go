package middleware

import "errors"

var (
	errAuthorizationMissing = errors.New("authorization header missing")
	errAuthorizationInvalid = errors.New("invalid authorization header")
)
