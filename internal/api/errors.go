package api

import (
	"encoding/json"
	"strconv"
)

// StatusError is any non-2xx response from the backend, with the best
// message the body offered.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "HTTP " + strconv.Itoa(e.Status)
}

// NetworkError is a transport-level failure: the request never produced an
// HTTP response. No retry is attempted.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "request failed: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// errorBody is the union of error payload shapes the backend emits.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Err     string `json:"error"`
}

// statusError builds a StatusError from a response body, preferring the
// structured detail, then message, then error fields.
func statusError(status int, body []byte) *StatusError {
	var parsed errorBody
	detail := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Detail != "":
			detail = parsed.Detail
		case parsed.Message != "":
			detail = parsed.Message
		case parsed.Err != "":
			detail = parsed.Err
		}
	}
	return &StatusError{Status: status, Detail: detail}
}
