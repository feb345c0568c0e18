package dbfs

import (
	"errors"
	"fmt"
	"net/http"

	"lakeio/internal/blob"
)

// errResourceDoesNotExist is the error_code DBFS returns for a missing path.
const errResourceDoesNotExist = "RESOURCE_DOES_NOT_EXIST"

// APIError is a non-2xx DBFS response.
//
// errors.Is maps it onto the blob sentinels: 404 or RESOURCE_DOES_NOT_EXIST
// match blob.ErrNotFound, any other 400 matches blob.ErrBadRequest.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("dbfs: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("dbfs: http %d: %s: %s", e.StatusCode, e.ErrorCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case blob.ErrNotFound:
		return e.StatusCode == http.StatusNotFound || e.ErrorCode == errResourceDoesNotExist
	case blob.ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest && e.ErrorCode != errResourceDoesNotExist
	}
	return false
}

// IsThrottled reports whether err is a 429 from the API.
func IsThrottled(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusTooManyRequests
}
