package runtime

import (
	"strings"

	"github.com/nrednav/cuid2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// PATH used when neither the image nor the caller sets one.
const defaultPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Returns the namespaces a launched process gets. Without network, the
// process shares the host's network namespace.
func Namespaces(network bool) []specs.LinuxNamespace {
	ns := []specs.LinuxNamespace{
		{Type: specs.UTSNamespace},
		{Type: specs.PIDNamespace},
		{Type: specs.MountNamespace},
		{Type: specs.IPCNamespace},
	}
	if network {
		ns = append(ns, specs.LinuxNamespace{Type: specs.NetworkNamespace})
	}
	return ns
}

// Builds a launch spec for an image config and rootfs.
//
// The argument vector is the config's entrypoint followed by args, or by the
// config's cmd when args is empty. env entries override the config's
// environment. The hostname is random.
func NewSpec(cfg ocispec.ImageConfig, rootfs string, args, env []string) *specs.Spec {
	if len(args) == 0 {
		args = cfg.Cmd
	}
	argv := append(append([]string{}, cfg.Entrypoint...), args...)

	merged := mergeEnv(cfg.Env, env)
	if !hasKey(merged, "PATH") {
		merged = append(merged, defaultPath)
	}

	cwd := cfg.WorkingDir
	if cwd == "" {
		cwd = "/"
	}

	return &specs.Spec{
		Version:  specs.Version,
		Hostname: cuid2.Generate(),
		Root:     &specs.Root{Path: rootfs},
		Process: &specs.Process{
			Args: argv,
			Env:  merged,
			Cwd:  cwd,
		},
		Linux: &specs.Linux{
			Namespaces: Namespaces(true),
		},
	}
}

// Merges override env vars on top of a base env slice. Base order is kept;
// new keys are appended in override order. Entries without "=" are dropped.
func mergeEnv(base, overrides []string) []string {
	result := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base)+len(overrides))

	for _, list := range [][]string{base, overrides} {
		for _, entry := range list {
			k, _, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			if i, seen := index[k]; seen {
				result[i] = entry
				continue
			}
			index[k] = len(result)
			result = append(result, entry)
		}
	}
	return result
}

func hasKey(env []string, key string) bool {
	for _, entry := range env {
		if k, _, _ := strings.Cut(entry, "="); k == key {
			return true
		}
	}
	return false
}

func hasNamespace(spec *specs.Spec, t specs.LinuxNamespaceType) bool {
	if spec.Linux == nil {
		return false
	}
	for _, ns := range spec.Linux.Namespaces {
		if ns.Type == t {
			return true
		}
	}
	return false
}
