package scoring

import "errors"

// Sentinel errors for the scoring client.
var (
	// ErrUnauthorized means the token was rejected; authenticate again.
	ErrUnauthorized = errors.New("scoring service rejected credentials")
	// ErrNotAuthenticated means no token is held yet.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStatus is an unexpected HTTP status.
	ErrStatus = errors.New("unexpected response status")
	// ErrMalformed is a response that does not decode into the expected shape.
	ErrMalformed = errors.New("malformed response")
	// ErrTransport wraps connection failures and timeouts that outlived the retries.
	ErrTransport = errors.New("scoring service unreachable")
)
