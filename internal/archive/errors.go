package archive

import "errors"

var (
	ErrExtract = errors.New("extract failed")
)
