package transport

import "errors"

var (
	ErrUnavailable  = errors.New("bus unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrServer       = errors.New("server rejected request")
)
