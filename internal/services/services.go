package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/desertthunder/journeyx/internal/shared"
)

// APIError is a non-2xx backend answer.
//
// It matches the shared sentinels with [errors.Is]: 400 [shared.ErrBadRequest], 401 [shared.ErrNotAuthenticated],
// 404 [shared.ErrNotFound], 409 [shared.ErrConflict], 410 [shared.ErrGone]. Every APIError also matches
// [shared.ErrAPIRequest].
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// Is maps the status code onto the shared sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case shared.ErrAPIRequest:
		return true
	case shared.ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	case shared.ErrNotAuthenticated:
		return e.StatusCode == http.StatusUnauthorized
	case shared.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case shared.ErrConflict:
		return e.StatusCode == http.StatusConflict
	case shared.ErrGone:
		return e.StatusCode == http.StatusGone
	case shared.ErrServiceUnavailable:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// StatusCode extracts the HTTP status from an [*APIError], or 0 for transport failures.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	} else if len(raw) > 0 {
		apiErr.Message = string(raw)
	}

	if apiErr.Message == "" {
		apiErr.Message = "HTTP error " + strconv.Itoa(resp.StatusCode)
	}
	return apiErr
}
