package commands

import (
	"errors"
	"fmt"
)

// ClientError is a problem with the user's input. Its message is sent to
// chat verbatim and the router keeps listening.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string { return e.Message }

// ServerError is an internal failure. The router logs it and stops.
type ServerError struct {
	Cause error
}

func (e *ServerError) Error() string {
	if e.Cause == nil {
		return "server error"
	}
	return e.Cause.Error()
}

func (e *ServerError) Unwrap() error { return e.Cause }

func Client(msg string) error { return &ClientError{Message: msg} }

func Clientf(format string, args ...any) error {
	return &ClientError{Message: fmt.Sprintf(format, args...)}
}

// Server wraps err. A nil err stays nil and an existing ClientError or
// ServerError is returned unchanged.
func Server(err error) error {
	if err == nil {
		return nil
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return err
	}
	var se *ServerError
	if errors.As(err, &se) {
		return err
	}
	return &ServerError{Cause: err}
}

// classify splits err into a client message or a server error. Anything
// that is not a ClientError counts as a server error.
func classify(err error) (clientMsg string, serverErr error) {
	if err == nil {
		return "", nil
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Message, nil
	}
	return "", Server(err)
}
