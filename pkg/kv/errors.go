package kv

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents a classification of transport errors.
type ErrorClass string

const (
	// ErrorClassClient represents caller mistakes (4xx, bad arguments).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents backend failures (5xx).
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents connection and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassHTMLBody represents the backend answering with an HTML error
	// page instead of the expected JSON envelope. This signature indicates an
	// infrastructure or credential problem rather than an application bug and
	// is logged at error level.
	ErrorClassHTMLBody ErrorClass = "html_body"
)

// TransportError is returned by Transport implementations on failure.
type TransportError struct {
	Transport  string
	Command    string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kv %s error (%s %s, status %d): %s: %v",
			e.Class, e.Transport, e.Command, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("kv %s error (%s %s, status %d): %s",
		e.Class, e.Transport, e.Command, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// shouldFailOver determines whether an error from one transport warrants
// retrying the command on the other implementation. Missing keys are not
// failures, and client-class errors would fail identically on either leg.
func shouldFailOver(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Class != ErrorClassClient
	}
	return true
}

// isHTMLBody reports whether a response body looks like an HTML error page.
func isHTMLBody(body []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(body)))
	return strings.HasPrefix(s, "<!doctype") || strings.HasPrefix(s, "<html")
}
