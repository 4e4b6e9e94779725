package registry

import (
	"context"
	_ "crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tugbuild/tug/internal/archive"
)

const maxConfigSize = 8 << 20

var errContentMismatch = errors.New("content does not match descriptor")

func (c *Client) blobURL(repo string, desc ocispec.Descriptor) string {
	return c.baseURL + "/v2/" + repo + "/blobs/" + desc.Digest.String()
}

// Copies r to w, verifying size and digest against desc.
func copyVerified(w io.Writer, r io.Reader, desc ocispec.Descriptor) error {
	if err := desc.Digest.Validate(); err != nil {
		return err
	}

	verifier := desc.Digest.Verifier()
	n, err := io.Copy(io.MultiWriter(w, verifier), r)
	if err != nil {
		return err
	}

	if desc.Size > 0 && n != desc.Size {
		return fmt.Errorf("%w: read %d bytes, expected %d", errContentMismatch, n, desc.Size)
	}
	if !verifier.Verified() {
		return errContentMismatch
	}
	return nil
}

func blobKind(err error) error {
	if errors.Is(err, errContentMismatch) {
		return ErrDigestMismatch
	}
	return ErrTransport
}

// Fetches a small JSON blob such as the image config.
func (c *Client) fetchJSON(ctx context.Context, repo, token string, desc ocispec.Descriptor, v any) error {
	step := "config " + desc.Digest.String()

	resp, err := c.get(ctx, c.blobURL(repo, desc), token, nil)
	if err != nil {
		return stepError(step, classify(err), err)
	}
	defer resp.Body.Close()

	var buf limitedBuffer
	buf.max = maxConfigSize
	if err := copyVerified(&buf, resp.Body, desc); err != nil {
		return stepError(step, blobKind(err), err)
	}

	if err := json.Unmarshal(buf.data, v); err != nil {
		return stepError(step, ErrDecode, err)
	}
	return nil
}

// Downloads layers concurrently and applies them to dest in order.
//
// Each layer lands in a temporary file first. The extractor waits on the
// layer it needs next, so a slow early layer holds back extraction but not
// the downloads behind it.
func (c *Client) fetchLayers(ctx context.Context, repo, token string, layers []ocispec.Descriptor, dest string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return stepError("layers", archive.ErrExtract, err)
	}

	tmp, err := os.MkdirTemp("", "tug-pull-*")
	if err != nil {
		return stepError("layers", archive.ErrExtract, err)
	}
	defer os.RemoveAll(tmp)

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(c.concurrency))
	ready := make([]chan string, len(layers))

	for i, layer := range layers {
		ready[i] = make(chan string, 1)

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			path, err := c.downloadBlob(gctx, repo, token, layer, tmp)
			if err != nil {
				return err
			}
			ready[i] <- path
			return nil
		})
	}

	g.Go(func() error {
		for i, layer := range layers {
			var path string
			select {
			case path = <-ready[i]:
			case <-gctx.Done():
				return gctx.Err()
			}

			err := applyLayer(gctx, path, dest)
			os.Remove(path)
			if err != nil {
				return stepError("layer "+layer.Digest.String(), archive.ErrExtract, err)
			}

			slog.Debug("applied layer", "index", i, "digest", layer.Digest.String())
		}
		return nil
	})

	return g.Wait()
}

func (c *Client) downloadBlob(ctx context.Context, repo, token string, desc ocispec.Descriptor, dir string) (string, error) {
	step := "layer " + desc.Digest.String()

	resp, err := c.get(ctx, c.blobURL(repo, desc), token, nil)
	if err != nil {
		return "", stepError(step, classify(err), err)
	}
	defer resp.Body.Close()

	f, err := os.CreateTemp(dir, "layer-*")
	if err != nil {
		return "", stepError(step, archive.ErrExtract, err)
	}

	err = copyVerified(f, resp.Body, desc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", stepError(step, blobKind(err), err)
	}

	slog.Debug("downloaded layer", "digest", desc.Digest.String(), "size", desc.Size)
	return f.Name(), nil
}

func applyLayer(ctx context.Context, path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return archive.Extract(ctx, f, dest)
}

// Buffer refusing writes beyond max bytes.
type limitedBuffer struct {
	data []byte
	max  int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if len(b.data)+len(p) > b.max {
		return 0, fmt.Errorf("blob exceeds %d bytes", b.max)
	}
	b.data = append(b.data, p...)
	return len(p), nil
}
