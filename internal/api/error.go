package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Error is a failure response from the SeedHub API.
// Message carries the server's own wording and is shown to users verbatim.
type Error struct {
	Status  int
	Message string
}

// Compile-time check that Error implements error.
var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// IsUnauthorized reports whether err is an API error with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsConflict reports whether err is an API error for a duplicate entity.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// errorFromResponse builds an Error from a non-2xx response body.
// The server answers failures with {"message": "..."}; anything else
// falls back to the HTTP status text.
func errorFromResponse(resp *http.Response) *Error {
	apiErr := &Error{Status: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}

	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Message = envelope.Message
	}

	return apiErr
}
