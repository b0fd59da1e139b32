// Package common defines shared constants and sentinel errors used across
// the DreamKeeper client layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Store errors. A failed read degrades to an empty result inside the
	// store; a failed write is reported as ErrStorage and callers treat
	// it as non-fatal.
	ErrStorage = errors.New("local storage failure")

	// Remote errors. Unavailable covers transport failures, timeouts and
	// 5xx responses; the triggering action is queued and retried later.
	// Rejected covers 401/403/404 semantic rejections; the backend will
	// never accept the call, so it must not be silently retried.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrRemoteRejected    = errors.New("remote rejected request")

	// Session errors.
	ErrNoSession    = errors.New("no session token")
	ErrTokenExpired = errors.New("session token expired")
	ErrInvalidToken = errors.New("invalid session token")
)

// AuthorizationHeaderName carries the bearer token on outbound requests.
const AuthorizationHeaderName = "Authorization"
