package image

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// Tag used when a reference names none.
const DefaultTag = "latest"

// Registry host every reference resolves against.
const DefaultDomain = "docker.io"

// Names an image in the registry.
//
// Repository is kept as written ("ubuntu", "myorg/app"); [Reference.Path]
// gives the normalized registry path.
type Reference struct {
	Repository string
	Tag        string
	Digest     string // Set for "repo@sha256:..." references; Tag is empty then.
}

// Splits a reference on its first ":" into repository and tag, defaulting
// the tag to "latest". A reference containing "@" is split there instead
// and pins a manifest digest.
//
//	ParseReference("ubuntu:20.04") == Reference{Repository: "ubuntu", Tag: "20.04"}
//	ParseReference("ubuntu")       == Reference{Repository: "ubuntu", Tag: "latest"}
func ParseReference(s string) Reference {
	s = strings.TrimSpace(s)

	if repo, dgst, ok := strings.Cut(s, "@"); ok {
		return Reference{Repository: repo, Digest: dgst}
	}

	repo, tag, _ := strings.Cut(s, ":")
	if tag == "" {
		tag = DefaultTag
	}
	return Reference{Repository: repo, Tag: tag}
}

// The tag or digest to request from the manifests endpoint.
func (r Reference) Ref() string {
	if r.Digest != "" {
		return r.Digest
	}
	return r.Tag
}

// Repository path on the registry, e.g. "library/ubuntu" for "ubuntu".
//
// Official images live under "library/" on Docker Hub; the normalization
// follows the distribution reference grammar, which also validates the
// repository name. References naming another registry host are rejected,
// since pulls always go to [DefaultDomain].
func (r Reference) Path() (string, error) {
	named, err := reference.ParseNormalizedNamed(r.Repository)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidReference, r.Repository, err)
	}
	if domain := reference.Domain(named); domain != DefaultDomain {
		return "", fmt.Errorf("%w: %q: registry %s is not supported", ErrInvalidReference, r.Repository, domain)
	}
	return reference.Path(named), nil
}

func (r Reference) String() string {
	if r.Digest != "" {
		return r.Repository + "@" + r.Digest
	}
	return r.Repository + ":" + r.Tag
}
