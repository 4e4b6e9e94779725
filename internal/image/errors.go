package image

import "errors"

var (
	ErrInvalidReference = errors.New("invalid image reference")
	ErrNoConfig         = errors.New("bundle has no image config")
)
