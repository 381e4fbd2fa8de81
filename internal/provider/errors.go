package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is matched by every credential rejection, whether it
// arrived as 401/403 or as a business code.
var ErrUnauthorized = errors.New("provider unauthorized")

const maxErrorBody = 256

// HTTPError is a non-2xx response.
type HTTPError struct {
	Provider   string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Sprintf("%s %s: http status %d: %s", e.Provider, e.Endpoint, e.StatusCode, body)
}

func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// LimitedError is a 200 response whose business code is not success. The
// caller records the scan as limited rather than failing it.
type LimitedError struct {
	Provider string
	Endpoint string
	Code     int
	Message  string
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("%s %s: provider limited: code=%d msg=%s", e.Provider, e.Endpoint, e.Code, e.Message)
}

// businessError is a transient or auth business code seen inside the retry
// loop. It never escapes FetchJSON.
type businessError struct {
	code    int
	message string
	auth    bool
}

func (e *businessError) Error() string {
	return fmt.Sprintf("business code %d: %s", e.code, e.message)
}

func (e *businessError) Is(target error) bool {
	return e.auth && target == ErrUnauthorized
}
