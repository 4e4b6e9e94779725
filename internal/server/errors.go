package server

import "errors"

var (
	ErrServer     = errors.New("server error")
	ErrBadRequest = errors.New("bad request")
)
