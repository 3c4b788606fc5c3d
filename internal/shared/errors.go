package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrIntegrity indicates a ciphertext tag mismatch or an audit-hash mismatch.
	// Operations that hit it fail closed and never return partial data.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrConfig indicates a malformed or inconsistent role/permission document.
	// Fatal at load time; the process must not start with an ambiguous graph.
	ErrConfig = errors.New("configuration invalid")
	// ErrGrantExpired indicates an evaluation against a break-glass grant past
	// its TTL. Callers treat it identically to "no grant".
	ErrGrantExpired = errors.New("elevated grant expired")
	// ErrReplay indicates a TOTP or recovery code presented a second time.
	ErrReplay = errors.New("credential replay")
	// ErrRateExceeded is the advisory signal from the suspicious-activity
	// detectors. It never locks anything by itself.
	ErrRateExceeded = errors.New("rate threshold exceeded")
	// ErrValidation indicates a malformed request payload.
	ErrValidation = errors.New("validation failed")
	// ErrDenied indicates an access decision of deny. The message is the same
	// for "no such permission" and "not permitted" so callers cannot probe the
	// permission dictionary.
	ErrDenied = errors.New("access denied")
)
