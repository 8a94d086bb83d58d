package api

import "fmt"

// NetworkError is a transport-level failure: connection refused, DNS,
// or the 60 second call timeout. The request may never have reached the
// backend.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response from the backend, carrying the status
// code and response body.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("error: %d - %s", e.Status, e.Body)
}

// ParseError is a 2xx response whose body did not match the shape the
// endpoint expects.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid response format: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
