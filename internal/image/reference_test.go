package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		in   string
		want Reference
	}{
		{"ubuntu:20.04", Reference{Repository: "ubuntu", Tag: "20.04"}},
		{"ubuntu", Reference{Repository: "ubuntu", Tag: "latest"}},
		{"ubuntu:", Reference{Repository: "ubuntu", Tag: "latest"}},
		{" alpine:3.19 ", Reference{Repository: "alpine", Tag: "3.19"}},
		{"myorg/app:v1", Reference{Repository: "myorg/app", Tag: "v1"}},
		{"alpine@sha256:abcd", Reference{Repository: "alpine", Digest: "sha256:abcd"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseReference(tt.in))
		})
	}
}

func TestReferenceRef(t *testing.T) {
	assert.Equal(t, "20.04", ParseReference("ubuntu:20.04").Ref())
	assert.Equal(t, "sha256:abcd", ParseReference("alpine@sha256:abcd").Ref())
}

func TestReferencePath(t *testing.T) {
	path, err := ParseReference("ubuntu:20.04").Path()
	require.NoError(t, err)
	assert.Equal(t, "library/ubuntu", path)

	path, err = ParseReference("myorg/app").Path()
	require.NoError(t, err)
	assert.Equal(t, "myorg/app", path)

	path, err = ParseReference("docker.io/library/alpine:3.19").Path()
	require.NoError(t, err)
	assert.Equal(t, "library/alpine", path)

	for _, in := range []string{"UPPER/case", "ghcr.io/foo/bar:1.0", "quay.io/coreos/etcd"} {
		_, err = ParseReference(in).Path()
		require.ErrorIs(t, err, ErrInvalidReference, in)
	}
}

func TestReferenceString(t *testing.T) {
	assert.Equal(t, "ubuntu:latest", ParseReference("ubuntu").String())
	assert.Equal(t, "alpine@sha256:abcd", ParseReference("alpine@sha256:abcd").String())
}
