// Package registry pulls images from an OCI distribution registry.
//
// A pull resolves a tag to a manifest, following a manifest list or OCI index
// to the entry for the configured platform, then downloads the image config
// and every layer. Layers are fetched concurrently into temporary files and
// verified against their digests, but applied to the destination strictly in
// manifest order so later layers overwrite earlier ones.
//
// Authentication follows the Docker Hub token flow: an anonymous bearer token
// scoped to "repository:<path>:pull" is requested from the auth endpoint and
// sent with every registry request. Leaving the auth URL empty skips this.
//
// Failed requests are retried with exponential backoff on transport errors,
// 429 and 5xx responses. Errors are reported as [*Error], which carries the
// failed step and one of the sentinel kinds below.
package registry
