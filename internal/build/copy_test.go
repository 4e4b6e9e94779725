package build

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestIntoDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		dest   string
		target string
		want   bool
	}{
		{"trailing slash", "out/", filepath.Join(dir, "missing"), true},
		{"existing directory", "out", dir, true},
		{"existing file", "file", file, false},
		{"missing path", "new", filepath.Join(dir, "new"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := intoDir(tt.dest, tt.target); got != tt.want {
				t.Fatalf("intoDir(%q) = %v, want %v", tt.dest, got, tt.want)
			}
		})
	}
}

func TestWriteDirToTar(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("sub/a.txt", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := writeDirToTar(tw, src, "."); err != nil {
		t.Fatal(err)
	}
	tw.Close()

	entries := map[string]*tar.Header{}
	tr := tar.NewReader(&buf)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		entries[hdr.Name] = hdr
	}

	for _, name := range []string{".", "sub", "sub/a.txt", "link"} {
		if _, ok := entries[name]; !ok {
			t.Fatalf("missing entry %q in %v", name, entries)
		}
	}
	if got := entries["link"].Linkname; got != "sub/a.txt" {
		t.Fatalf("link target = %q, want sub/a.txt", got)
	}
	if entries["sub/a.txt"].Uid != 0 || entries["sub/a.txt"].Gid != 0 {
		t.Fatal("entries should be owned by root")
	}
}

func TestCopyLocal(t *testing.T) {
	contextDir := t.TempDir()
	rootfs := t.TempDir()

	if err := os.WriteFile(filepath.Join(contextDir, "file.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(contextDir, "site", "css"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(contextDir, "site", "css", "main.css"), []byte("body{}"), 0644); err != nil {
		t.Fatal(err)
	}

	e := &executor{
		ctx:     context.Background(),
		opts:    Options{ContextDir: contextDir},
		context: &Context{Rootfs: rootfs, Workdir: filepath.Join(rootfs, "app")},
	}

	tests := []struct {
		name string
		src  string
		dest string
		want string // Host path relative to rootfs.
	}{
		{"file to absolute path", "file.txt", "/opt/renamed.txt", "opt/renamed.txt"},
		{"file into directory", "file.txt", "/opt/", "opt/file.txt"},
		{"file relative to workdir", "file.txt", "conf/app.txt", "app/conf/app.txt"},
		{"directory contents", "site", "/var/www", "var/www/css/main.css"},
		{"escaping destination", "file.txt", "../../../../etc/escaped", "etc/escaped"},
		{"escaping source", "../../file.txt", "/src.txt", "src.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.copyLocal(tt.src, tt.dest); err != nil {
				t.Fatalf("copyLocal(%q, %q): %v", tt.src, tt.dest, err)
			}
			if _, err := os.Stat(filepath.Join(rootfs, tt.want)); err != nil {
				t.Fatalf("expected %s in rootfs: %v", tt.want, err)
			}
		})
	}
}

func TestCopyLocalMissingSource(t *testing.T) {
	rootfs := t.TempDir()
	e := &executor{
		ctx:     context.Background(),
		opts:    Options{ContextDir: t.TempDir()},
		context: &Context{Rootfs: rootfs, Workdir: rootfs},
	}

	err := e.copyLocal("nope", "/x")
	if !errors.Is(err, ErrCopy) {
		t.Fatalf("err = %v, want ErrCopy", err)
	}
}
