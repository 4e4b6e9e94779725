package build

import (
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Filesystem state of a build. Absent until the first FROM.
type Context struct {
	Rootfs  string // Host path of the image root.
	Workdir string // Host path of the working directory; always inside Rootfs.
}

// Resolves an image path to a host path inside the rootfs.
//
// Relative paths resolve against the working directory; absolute paths are
// anchored at the rootfs. Symlinks and ".." components are evaluated as if
// the rootfs were "/", so the result never leaves it.
func (c *Context) Resolve(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.ContainerPath(c.Workdir), p)
	}
	return securejoin.SecureJoin(c.Rootfs, p)
}

// Returns hostPath as seen from inside the image, e.g. "/app".
func (c *Context) ContainerPath(hostPath string) string {
	rel, err := filepath.Rel(c.Rootfs, hostPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "/"
	}
	return filepath.Join("/", rel)
}
