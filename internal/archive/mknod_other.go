//go:build !unix

package archive

import (
	"archive/tar"
	"errors"
)

func mknod(string, *tar.Header) error {
	return errors.New("device nodes are not supported on this platform")
}
