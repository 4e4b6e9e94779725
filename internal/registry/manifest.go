package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/containerd/platforms"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"
)

const maxManifestSize = 4 << 20

var manifestMediaTypes = []string{
	string(types.OCIImageIndex),
	string(types.DockerManifestList),
	string(types.OCIManifestSchema1),
	string(types.DockerManifestSchema2),
}

// Resolves ref to a single-platform manifest, following an index to the
// entry matching the client platform. Returns the manifest digest.
func (c *Client) resolve(ctx context.Context, repo, ref, token string) (string, *ocispec.Manifest, error) {
	body, mediaType, dgst, err := c.fetchManifest(ctx, repo, ref, token)
	if err != nil {
		return "", nil, err
	}

	if mediaType.IsIndex() {
		var index ocispec.Index
		if err := json.Unmarshal(body, &index); err != nil {
			return "", nil, stepError("manifest "+ref, ErrDecode, err)
		}

		desc, ok := c.selectPlatform(index.Manifests)
		if !ok {
			return "", nil, stepError("manifest "+ref, ErrPlatformNotFound,
				fmt.Errorf("%s has no %s entry among %d", ref, platforms.Format(c.platform), len(index.Manifests)))
		}
		pinned := desc.Digest.String()

		body, mediaType, dgst, err = c.fetchManifest(ctx, repo, pinned, token)
		if err != nil {
			return "", nil, err
		}
		if mediaType.IsIndex() {
			return "", nil, stepError("manifest "+pinned, ErrDecode, fmt.Errorf("nested index"))
		}
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return "", nil, stepError("manifest "+ref, ErrDecode, err)
	}
	return dgst, &manifest, nil
}

// Returns the first index entry matching the client platform.
func (c *Client) selectPlatform(manifests []ocispec.Descriptor) (ocispec.Descriptor, bool) {
	matcher := platforms.NewMatcher(c.platform)
	return lo.Find(manifests, func(d ocispec.Descriptor) bool {
		return d.Platform != nil && matcher.Match(*d.Platform)
	})
}

func (c *Client) fetchManifest(ctx context.Context, repo, ref, token string) ([]byte, types.MediaType, string, error) {
	step := "manifest " + ref

	resp, err := c.get(ctx, c.baseURL+"/v2/"+repo+"/manifests/"+ref, token, manifestMediaTypes)
	if err != nil {
		return nil, "", "", stepError(step, classify(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, "", "", stepError(step, ErrTransport, err)
	}

	dgst := digest.FromBytes(body)
	if pinned, err := digest.Parse(ref); err == nil && pinned != dgst {
		return nil, "", "", stepError(step, ErrDigestMismatch, fmt.Errorf("got %s", dgst))
	}
	if header := resp.Header.Get("Docker-Content-Digest"); header != "" && header != dgst.String() {
		return nil, "", "", stepError(step, ErrDigestMismatch, fmt.Errorf("registry reported %s, got %s", header, dgst))
	}

	ct, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	mediaType := types.MediaType(strings.TrimSpace(ct))
	if !mediaType.IsIndex() && !mediaType.IsImage() {
		mediaType, err = sniffMediaType(body)
		if err != nil {
			return nil, "", "", stepError(step, ErrDecode, err)
		}
	}

	return body, mediaType, dgst.String(), nil
}

// Infers the media type of a manifest served without a usable Content-Type.
func sniffMediaType(body []byte) (types.MediaType, error) {
	var probe struct {
		MediaType string            `json:"mediaType"`
		Manifests []json.RawMessage `json:"manifests"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", err
	}

	switch {
	case probe.MediaType != "":
		return types.MediaType(probe.MediaType), nil
	case probe.Manifests != nil:
		return types.OCIImageIndex, nil
	default:
		return types.OCIManifestSchema1, nil
	}
}
