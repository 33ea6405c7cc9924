package resilient

import (
	"fmt"
	"net/http"
)

// StatusError reports a non-2xx response from a registry or API endpoint.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}

// Transient reports whether the status is worth retrying. Rate limiting and
// server-side failures are; every other client error is not.
func (e *StatusError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// CheckResponse converts a non-2xx response into a *StatusError.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	url := ""
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.URL.String()
	}
	return &StatusError{Status: resp.StatusCode, URL: url}
}
