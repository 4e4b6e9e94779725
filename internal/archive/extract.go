package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

const whiteoutPrefix = ".wh."

// Unpacks a possibly compressed tar stream into dest.
func Extract(ctx context.Context, r io.Reader, dest string) error {
	dr, done, err := Decompress(r)
	if err != nil {
		return err
	}
	defer done()

	return Untar(ctx, dr, dest)
}

// Unpacks an uncompressed tar stream into dest, creating dest if needed.
//
// Entries overwrite existing files. An existing entry of a different type is
// removed first, except that a directory entry over an existing directory
// keeps the directory's contents.
func Untar(ctx context.Context, r io.Reader, dest string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrExtract, dest, err)
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtract, err)
	}

	privileged := os.Geteuid() == 0
	tr := tar.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read header: %w", ErrExtract, err)
		}

		if err := extractEntry(root, hdr, tr, privileged); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrExtract, hdr.Name, err)
		}
	}
}

func extractEntry(root string, hdr *tar.Header, r io.Reader, privileged bool) error {
	name := filepath.Clean("/" + hdr.Name)
	if name == "/" {
		return nil
	}

	base := filepath.Base(name)
	if strings.HasPrefix(base, whiteoutPrefix) {
		slog.Debug("skipping whiteout", "path", name)
		return nil
	}

	// The parent is resolved through symlinks inside root; the final
	// component is not, so an entry replaces a symlink rather than writing
	// through it.
	parent, err := securejoin.SecureJoin(root, filepath.Dir(name))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(parent, 0755); err != nil {
		return err
	}
	target := filepath.Join(parent, base)

	if err := clearTarget(target, hdr.Typeflag == tar.TypeDir); err != nil {
		return err
	}

	mode := hdr.FileInfo().Mode() & (os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky)

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.Mkdir(target, 0755); err != nil && !os.IsExist(err) {
			return err
		}

	case tar.TypeReg:
		if err := writeFile(target, r, mode); err != nil {
			return err
		}

	case tar.TypeSymlink:
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return err
		}

	case tar.TypeLink:
		src, err := securejoin.SecureJoin(root, hdr.Linkname)
		if err != nil {
			return err
		}
		if err := os.Link(src, target); err != nil {
			return err
		}

	case tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
		if !privileged {
			slog.Debug("skipping device node", "path", name)
			return nil
		}
		if err := mknod(target, hdr); err != nil {
			return err
		}

	default:
		slog.Debug("skipping unsupported entry", "path", name, "type", string(hdr.Typeflag))
		return nil
	}

	return applyMetadata(target, hdr, mode, privileged)
}

func clearTarget(target string, isDir bool) error {
	fi, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if isDir && fi.IsDir() {
		return nil
	}
	return os.RemoveAll(target)
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func applyMetadata(target string, hdr *tar.Header, mode os.FileMode, privileged bool) error {
	if privileged {
		if err := os.Lchown(target, hdr.Uid, hdr.Gid); err != nil {
			return err
		}
	}

	// Symlink permissions and times are not portable to set.
	if hdr.Typeflag == tar.TypeSymlink {
		return nil
	}

	if hdr.Typeflag != tar.TypeLink {
		if err := os.Chmod(target, mode); err != nil {
			return err
		}
	}

	atime := hdr.AccessTime
	if atime.IsZero() {
		atime = hdr.ModTime
	}
	if hdr.ModTime.IsZero() {
		return nil
	}
	return os.Chtimes(target, atime, hdr.ModTime)
}
