package build

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tugbuild/tug/internal/archive"
	"github.com/tugbuild/tug/internal/paths"
)

// Executes ADD. URL sources are downloaded without extraction; local tar
// archives, compressed or not, are unpacked into dest; anything else is
// copied like COPY.
func (e *executor) add(src, dest string) error {
	if isURL(src) {
		return e.addURL(src, dest)
	}

	srcPath, err := e.sourcePath(src)
	if err != nil {
		return err
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	if info.Mode().IsRegular() {
		ok, err := archive.IsArchive(srcPath)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCopy, err)
		}
		if ok {
			return e.addArchive(srcPath, dest)
		}
	}

	return e.copyLocal(src, dest)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (e *executor) addArchive(srcPath, dest string) error {
	target, err := e.context.Resolve(dest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	slog.Debug("add archive", "src", srcPath, "dest", e.context.ContainerPath(target))

	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	defer f.Close()

	if err := archive.Extract(e.ctx, f, target); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	return nil
}

// Downloads src to dest. The file is named after the last URL path segment
// when dest is a directory.
func (e *executor) addURL(src, dest string) error {
	u, err := url.Parse(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	target, err := e.context.Resolve(dest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	if intoDir(dest, target) {
		name := path.Base(u.Path)
		if name == "/" || name == "." {
			return fmt.Errorf("%w: cannot derive a file name from %s", ErrCopy, src)
		}
		target = filepath.Join(target, name)
	}

	slog.Debug("add url", "src", src, "dest", e.context.ContainerPath(target))

	req, err := http.NewRequestWithContext(e.ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	resp, err := e.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %s", ErrCopy, src, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(target), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	// Replace rather than write through an existing symlink.
	os.Remove(target)

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, paths.DefaultFileMode)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	_, err = f.ReadFrom(resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	return nil
}
