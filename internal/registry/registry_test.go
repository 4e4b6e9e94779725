package registry

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/containerd/errdefs"
	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tugbuild/tug/internal/image"
)

const repoPath = "library/alpine"

type content struct {
	mediaType string
	data      []byte
}

// In-memory registry serving a single repository.
type fakeRegistry struct {
	manifests map[string]content
	blobs     map[digest.Digest][]byte
	token     string
	delays    map[digest.Digest]time.Duration

	mu       sync.Mutex
	failures map[string]int
	tampered map[digest.Digest]bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		manifests: map[string]content{},
		blobs:     map[digest.Digest][]byte{},
		delays:    map[digest.Digest]time.Duration{},
		failures:  map[string]int{},
		tampered:  map[digest.Digest]bool{},
	}
}

func (f *fakeRegistry) addBlob(mediaType string, data []byte) ocispec.Descriptor {
	d := digest.FromBytes(data)
	f.blobs[d] = data
	return ocispec.Descriptor{MediaType: mediaType, Digest: d, Size: int64(len(data))}
}

// Stores an image and returns its manifest descriptor.
func (f *fakeRegistry) addImage(t *testing.T, platform ocispec.Platform, env []string, layers ...[]byte) ocispec.Descriptor {
	t.Helper()

	cfg := ocispec.Image{Platform: platform}
	cfg.Config.Env = env
	cfgData, err := json.Marshal(cfg)
	require.NoError(t, err)

	m := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    f.addBlob(ocispec.MediaTypeImageConfig, cfgData),
	}
	for _, l := range layers {
		m.Layers = append(m.Layers, f.addBlob(ocispec.MediaTypeImageLayerGzip, l))
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	d := digest.FromBytes(data)
	f.manifests[d.String()] = content{ocispec.MediaTypeImageManifest, data}

	return ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    d,
		Size:      int64(len(data)),
		Platform:  &platform,
	}
}

func (f *fakeRegistry) tag(tag string, desc ocispec.Descriptor) {
	f.manifests[tag] = f.manifests[desc.Digest.String()]
}

func (f *fakeRegistry) addIndex(t *testing.T, tag string, manifests ...ocispec.Descriptor) {
	t.Helper()

	idx := ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: manifests,
	}
	data, err := json.Marshal(idx)
	require.NoError(t, err)
	f.manifests[tag] = content{ocispec.MediaTypeImageIndex, data}
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/token" {
		if f.token == "" || r.URL.Query().Get("scope") != "repository:"+repoPath+":pull" {
			http.Error(w, "denied", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": f.token})
		return
	}

	if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	if f.failures[r.URL.Path] > 0 {
		f.failures[r.URL.Path]--
		f.mu.Unlock()
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	f.mu.Unlock()

	prefix := "/v2/" + repoPath + "/"
	rest, ok := strings.CutPrefix(r.URL.Path, prefix)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if ref, ok := strings.CutPrefix(rest, "manifests/"); ok {
		c, ok := f.manifests[ref]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", c.mediaType)
		w.Write(c.data)
		return
	}

	if ref, ok := strings.CutPrefix(rest, "blobs/"); ok {
		d := digest.Digest(ref)
		data, ok := f.blobs[d]
		if !ok {
			http.NotFound(w, r)
			return
		}
		time.Sleep(f.delays[d])

		f.mu.Lock()
		if f.tampered[d] {
			data = bytes.ToUpper(data)
		}
		f.mu.Unlock()

		w.Write(data)
		return
	}

	http.NotFound(w, r)
}

func layer(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, n := range names {
		body := files[n]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     n,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(body)),
			ModTime:  time.Unix(1700000000, 0),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func linux(arch string) ocispec.Platform {
	return ocispec.Platform{OS: "linux", Architecture: arch}
}

func newTestClient(url string, platform ocispec.Platform, retries uint) *Client {
	c := New(Options{
		BaseURL:     url,
		Platform:    platform,
		Retries:     retries,
		Concurrency: 4,
	})
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// Index with three platforms, each image holding a file naming it.
func multiPlatform(t *testing.T) (*fakeRegistry, map[string]ocispec.Descriptor) {
	reg := newFakeRegistry()
	descs := map[string]ocispec.Descriptor{
		"linux/amd64":   reg.addImage(t, linux("amd64"), []string{"ARCH=amd64"}, layer(t, map[string]string{"arch": "amd64"})),
		"linux/arm64":   reg.addImage(t, linux("arm64"), []string{"ARCH=arm64"}, layer(t, map[string]string{"arch": "arm64"})),
		"windows/amd64": reg.addImage(t, ocispec.Platform{OS: "windows", Architecture: "amd64"}, nil, layer(t, map[string]string{"arch": "windows"})),
	}
	reg.addIndex(t, "3.19", descs["linux/amd64"], descs["linux/arm64"], descs["windows/amd64"])
	return reg, descs
}

func TestPullSelectsPlatform(t *testing.T) {
	reg, descs := multiPlatform(t)
	srv := httptest.NewServer(reg)
	defer srv.Close()

	tests := []struct {
		platform ocispec.Platform
		want     string
		key      string
	}{
		{linux("amd64"), "amd64", "linux/amd64"},
		{linux("arm64"), "arm64", "linux/arm64"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "rootfs")
			c := newTestClient(srv.URL, tt.platform, 1)

			res, err := c.Pull(context.Background(), image.ParseReference("alpine:3.19"), dest)
			require.NoError(t, err)

			assert.Equal(t, tt.want, readFile(t, filepath.Join(dest, "arch")))
			assert.Equal(t, descs[tt.key].Digest.String(), res.Digest)
			assert.Equal(t, []string{"ARCH=" + tt.want}, res.Config.Config.Env)
			assert.Len(t, res.Manifest.Layers, 1)
		})
	}
}

func TestPullPlatformNotFound(t *testing.T) {
	reg, _ := multiPlatform(t)
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := newTestClient(srv.URL, linux("s390x"), 1)
	_, err := c.Pull(context.Background(), image.ParseReference("alpine:3.19"), t.TempDir())

	require.ErrorIs(t, err, ErrPlatformNotFound)
	assert.True(t, errdefs.IsNotFound(err))

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "manifest 3.19", rerr.Step)
}

func TestPullSingleManifest(t *testing.T) {
	reg := newFakeRegistry()
	reg.tag("latest", reg.addImage(t, linux("amd64"), nil, layer(t, map[string]string{"hello": "world"})))
	srv := httptest.NewServer(reg)
	defer srv.Close()

	dest := t.TempDir()
	c := newTestClient(srv.URL, linux("amd64"), 1)
	_, err := c.Pull(context.Background(), image.ParseReference("alpine"), dest)
	require.NoError(t, err)

	assert.Equal(t, "world", readFile(t, filepath.Join(dest, "hello")))
}

func TestPullAppliesLayersInOrder(t *testing.T) {
	reg := newFakeRegistry()
	l1 := layer(t, map[string]string{"a": "1"})
	l2 := layer(t, map[string]string{"a": "2", "b": "3"})
	reg.tag("latest", reg.addImage(t, linux("amd64"), nil, l1, l2))

	// The first layer arrives last.
	reg.delays[digest.FromBytes(l1)] = 100 * time.Millisecond

	srv := httptest.NewServer(reg)
	defer srv.Close()

	dest := t.TempDir()
	c := newTestClient(srv.URL, linux("amd64"), 1)
	_, err := c.Pull(context.Background(), image.ParseReference("alpine"), dest)
	require.NoError(t, err)

	assert.Equal(t, "2", readFile(t, filepath.Join(dest, "a")))
	assert.Equal(t, "3", readFile(t, filepath.Join(dest, "b")))
}

func TestPullToken(t *testing.T) {
	reg, _ := multiPlatform(t)
	reg.token = "secret"
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := newTestClient(srv.URL, linux("amd64"), 1)
	c.authURL = srv.URL + "/token"

	_, err := c.Pull(context.Background(), image.ParseReference("alpine:3.19"), t.TempDir())
	require.NoError(t, err)
}

func TestPullAuthFailure(t *testing.T) {
	reg, _ := multiPlatform(t)
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := newTestClient(srv.URL, linux("amd64"), 1)
	c.authURL = srv.URL + "/token"

	_, err := c.Pull(context.Background(), image.ParseReference("alpine:3.19"), t.TempDir())
	require.ErrorIs(t, err, ErrAuth)
	assert.True(t, errdefs.IsUnauthorized(err))
}

func TestPullAuthUnreachable(t *testing.T) {
	reg, _ := multiPlatform(t)
	srv := httptest.NewServer(reg)
	defer srv.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	c := newTestClient(srv.URL, linux("amd64"), 1)
	c.authURL = down.URL + "/token"

	_, err := c.Pull(context.Background(), image.ParseReference("alpine:3.19"), t.TempDir())
	require.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrAuth)
}

func TestPullAuthUnavailable(t *testing.T) {
	reg, _ := multiPlatform(t)
	srv := httptest.NewServer(reg)
	defer srv.Close()

	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer auth.Close()

	c := newTestClient(srv.URL, linux("amd64"), 2)
	c.authURL = auth.URL + "/token"

	_, err := c.Pull(context.Background(), image.ParseReference("alpine:3.19"), t.TempDir())
	require.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrAuth)
}

func TestClassifyToken(t *testing.T) {
	assert.Equal(t, ErrAuth, classifyToken(&statusError{Code: 401}))
	assert.Equal(t, ErrAuth, classifyToken(&statusError{Code: 404}))
	assert.Equal(t, ErrTransport, classifyToken(&statusError{Code: 429}))
	assert.Equal(t, ErrTransport, classifyToken(&statusError{Code: 502}))
	assert.Equal(t, ErrTransport, classifyToken(errors.New("connection refused")))
}

func TestPullUnauthorizedManifest(t *testing.T) {
	reg, _ := multiPlatform(t)
	reg.token = "secret"
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := newTestClient(srv.URL, linux("amd64"), 3)
	_, err := c.Pull(context.Background(), image.ParseReference("alpine:3.19"), t.TempDir())
	require.ErrorIs(t, err, ErrAuth)
}

func TestPullNotFound(t *testing.T) {
	reg, _ := multiPlatform(t)
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := newTestClient(srv.URL, linux("amd64"), 3)
	_, err := c.Pull(context.Background(), image.ParseReference("alpine:nope"), t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPullRetriesUnavailable(t *testing.T) {
	reg, _ := multiPlatform(t)
	reg.failures["/v2/"+repoPath+"/manifests/3.19"] = 2
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := newTestClient(srv.URL, linux("amd64"), 3)
	_, err := c.Pull(context.Background(), image.ParseReference("alpine:3.19"), t.TempDir())
	require.NoError(t, err)
}

func TestPullGivesUpAfterRetries(t *testing.T) {
	reg, _ := multiPlatform(t)
	reg.failures["/v2/"+repoPath+"/manifests/3.19"] = 5
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := newTestClient(srv.URL, linux("amd64"), 2)
	_, err := c.Pull(context.Background(), image.ParseReference("alpine:3.19"), t.TempDir())
	require.ErrorIs(t, err, ErrTransport)
	assert.True(t, errdefs.IsUnavailable(err))
}

func TestPullDigestMismatch(t *testing.T) {
	reg := newFakeRegistry()
	l := layer(t, map[string]string{"a": "1"})
	reg.tag("latest", reg.addImage(t, linux("amd64"), nil, l))
	reg.tampered[digest.FromBytes(l)] = true
	srv := httptest.NewServer(reg)
	defer srv.Close()

	c := newTestClient(srv.URL, linux("amd64"), 1)
	_, err := c.Pull(context.Background(), image.ParseReference("alpine"), t.TempDir())
	require.ErrorIs(t, err, ErrDigestMismatch)
	assert.True(t, errdefs.IsDataLoss(err))
}

func TestPullInvalidReference(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", linux("amd64"), 1)
	_, err := c.Pull(context.Background(), image.ParseReference("Bad Name"), t.TempDir())
	require.ErrorIs(t, err, image.ErrInvalidReference)
}

func TestErrorMessage(t *testing.T) {
	err := stepError("layer sha256:abc", ErrTransport, &statusError{Code: 502, Status: "502 Bad Gateway"})
	assert.Contains(t, err.Error(), "layer sha256:abc")
	assert.Contains(t, err.Error(), "502 Bad Gateway")
}
