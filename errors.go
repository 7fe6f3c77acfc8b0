package estate

import (
	"errors"
	"fmt"
)

// GenericErrorMessage is the fallback message used when the server returns a
// failure without a decodable error payload.
const GenericErrorMessage = "An error occurred"

// ErrNoResponse marks transport-level failures: the request never produced an
// HTTP response (DNS failure, connection refused, context cancellation).
// Recovery flows treat these as transient and never force a logout for them.
var ErrNoResponse = errors.New("estate: no response from server")

// ErrAuthExpired is returned when a call failed with 401 and the client could
// not (or, for uploads, would not) recover the session.
var ErrAuthExpired = errors.New("estate: authentication expired")

// APIError is an application-level failure: the server responded, but with a
// non-2xx status or an envelope whose success flag was not explicitly true.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("estate: api error (status %d): %s", e.StatusCode, e.Message)
}

// IsNoResponse reports whether err is a transport-level failure.
func IsNoResponse(err error) bool {
	return errors.Is(err, ErrNoResponse)
}

// AsAPIError unwraps err into an *APIError if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
