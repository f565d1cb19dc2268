package api

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid_request")
	// ErrBusy is returned when every generation slot is taken.
	ErrBusy = errors.New("busy")
)

// invalidRequestError names the request field at fault, when there is one.
type invalidRequestError struct {
	param string
	msg   string
}

func (e invalidRequestError) Error() string {
	if e.param == "" {
		return e.msg
	}
	return e.param + ": " + e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(param, msg string) error {
	return invalidRequestError{param: param, msg: msg}
}
