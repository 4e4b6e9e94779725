package build

import (
	"archive/tar"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/tugbuild/tug/internal/archive"
	"github.com/tugbuild/tug/internal/paths"
)

// Copies a file or directory from the build context into the rootfs.
//
// Directory sources copy their contents into dest. A file source lands at
// dest, or inside it when dest ends in "/" or names an existing directory.
func (e *executor) copyLocal(src, dest string) error {
	srcPath, err := e.sourcePath(src)
	if err != nil {
		return err
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	target, err := e.context.Resolve(dest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	slog.Debug("copy", "src", srcPath, "dest", e.context.ContainerPath(target), "dir", info.IsDir())

	if info.IsDir() {
		return e.untarFrom(target, func(tw *tar.Writer) error {
			return writeDirToTar(tw, srcPath, ".")
		})
	}

	if intoDir(dest, target) {
		target = filepath.Join(target, filepath.Base(srcPath))
	}

	return e.untarFrom(filepath.Dir(target), func(tw *tar.Writer) error {
		return writeFileToTar(tw, srcPath, filepath.Base(target))
	})
}

// Resolves a COPY or ADD source inside the build context directory.
func (e *executor) sourcePath(src string) (string, error) {
	p, err := securejoin.SecureJoin(e.opts.ContextDir, src)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCopy, err)
	}
	return p, nil
}

// Reports whether a source should be placed inside dest rather than at it.
func intoDir(dest, target string) bool {
	if strings.HasSuffix(dest, "/") {
		return true
	}
	info, err := os.Stat(target)
	return err == nil && info.IsDir()
}

// Streams the tar produced by write into dir.
func (e *executor) untarFrom(dir string, write func(*tar.Writer) error) error {
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		writeErr := write(tw)
		if closeErr := tw.Close(); writeErr == nil {
			writeErr = closeErr
		}
		pw.CloseWithError(writeErr)
	}()

	if err := archive.Untar(e.ctx, pr, dir); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	// Drain trailing padding so the writer goroutine can finish.
	if _, err := io.Copy(io.Discard, pr); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	return nil
}

// Writes a single file to a tar writer with the given archive name.
func writeFileToTar(tw *tar.Writer, hostPath, name string) error {
	info, err := os.Stat(hostPath)
	if err != nil {
		return err
	}

	header, err := tarHeader(info, hostPath, name)
	if err != nil {
		return err
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// Writes a directory tree to a tar writer rooted at the given archive prefix.
func writeDirToTar(tw *tar.Writer, hostDir, prefix string) error {
	return filepath.WalkDir(hostDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}

		archivePath := filepath.ToSlash(filepath.Join(prefix, relPath))
		return writeTarEntry(tw, path, archivePath, d)
	})
}

// Writes a single file, directory or symlink entry to a tar writer.
func writeTarEntry(tw *tar.Writer, hostPath, archivePath string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	header, err := tarHeader(info, hostPath, archivePath)
	if err != nil {
		return err
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}

// Builds a header for a host file. Copied files belong to root in the image.
func tarHeader(info os.FileInfo, hostPath, name string) (*tar.Header, error) {
	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(hostPath)
		if err != nil {
			return nil, err
		}
		link = target
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return nil, err
	}

	header.Name = name
	header.Uid, header.Gid = 0, 0
	header.Uname, header.Gname = "", ""
	return header, nil
}
