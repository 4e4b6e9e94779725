package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/tugbuild/tug/internal"
	"github.com/tugbuild/tug/internal/image"
)

const (
	DefaultBaseURL     = "https://registry-1.docker.io"
	DefaultAuthURL     = "https://auth.docker.io/token"
	DefaultService     = "registry.docker.io"
	DefaultConcurrency = 3
)

// Client configuration.
type Options struct {
	BaseURL     string           // Defaults to Docker Hub.
	AuthURL     string           // Token endpoint. Empty pulls anonymously.
	Service     string           // Token service parameter.
	Platform    ocispec.Platform // Defaults to the host platform.
	HTTPClient  *http.Client
	Retries     uint // Attempts per request, including the first. Zero means one.
	Concurrency int  // Parallel layer downloads.
}

// Pulls images from a single registry.
type Client struct {
	baseURL     string
	authURL     string
	service     string
	platform    ocispec.Platform
	http        *http.Client
	retries     uint
	concurrency int
	newBackOff  func() backoff.BackOff
}

// Outcome of a successful pull.
type PullResult struct {
	Digest   string // Digest of the platform manifest.
	Manifest ocispec.Manifest
	Config   ocispec.Image
}

// Creates a client, filling in defaults for unset options.
func New(opts Options) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		authURL:     opts.AuthURL,
		service:     opts.Service,
		platform:    opts.Platform,
		http:        opts.HTTPClient,
		retries:     opts.Retries,
		concurrency: opts.Concurrency,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.service == "" {
		c.service = DefaultService
	}
	if c.platform.OS == "" {
		c.platform = platforms.DefaultSpec()
	}
	c.platform = platforms.Normalize(c.platform)
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.retries == 0 {
		c.retries = 1
	}
	if c.concurrency < 1 {
		c.concurrency = DefaultConcurrency
	}

	return c
}

// Pulls ref and extracts its layers into dest, which is created if needed.
//
// On failure dest may hold a partially extracted filesystem.
func (c *Client) Pull(ctx context.Context, ref image.Reference, dest string) (*PullResult, error) {
	repo, err := ref.Path()
	if err != nil {
		return nil, err
	}

	slog.Info("pulling image", "ref", ref.String(), "platform", platforms.Format(c.platform))

	token, err := c.token(ctx, repo)
	if err != nil {
		return nil, err
	}

	dgst, manifest, err := c.resolve(ctx, repo, ref.Ref(), token)
	if err != nil {
		return nil, err
	}

	var config ocispec.Image
	if err := c.fetchJSON(ctx, repo, token, manifest.Config, &config); err != nil {
		return nil, err
	}

	if err := c.fetchLayers(ctx, repo, token, manifest.Layers, dest); err != nil {
		return nil, err
	}

	slog.Info("pulled image", "ref", ref.String(), "digest", dgst, "layers", len(manifest.Layers))

	return &PullResult{Digest: dgst, Manifest: *manifest, Config: config}, nil
}

// Obtains a pull token for repo. Returns "" when token auth is disabled.
func (c *Client) token(ctx context.Context, repo string) (string, error) {
	if c.authURL == "" {
		return "", nil
	}

	q := url.Values{
		"service": {c.service},
		"scope":   {"repository:" + repo + ":pull"},
	}
	resp, err := c.get(ctx, c.authURL+"?"+q.Encode(), "", nil)
	if err != nil {
		return "", stepError("token", classifyToken(err), err)
	}
	defer resp.Body.Close()

	var body struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", stepError("token", ErrAuth, err)
	}

	token := body.Token
	if token == "" {
		token = body.AccessToken
	}
	if token == "" {
		return "", stepError("token", ErrAuth, fmt.Errorf("auth response has no token"))
	}
	return token, nil
}

// Issues a GET with retries. Transport errors, 429 and 5xx responses are
// retried; any other non-200 status fails immediately with *statusError.
func (c *Client) get(ctx context.Context, target, token string, accept []string) (*http.Response, error) {
	op := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", internal.Name+"/"+internal.Version())
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		for _, a := range accept {
			req.Header.Add("Accept", a)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			slog.Debug("registry request failed, retrying", "url", target, "error", err)
			return nil, err
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		serr := &statusError{Code: resp.StatusCode, Status: resp.Status}
		if serr.retryable() {
			slog.Debug("registry unavailable, retrying", "url", target, "status", resp.Status)
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.retries),
	)
}
