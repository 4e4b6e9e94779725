package internal

import (
	"fmt"
	"runtime"
	"strings"
)

// Program name, used for the CLI, log prefix and directory names.
const Name = "tug"

const (
	undefined  = "(undefined)" // Placeholder for unset linker variables.
	localBuild = "(local)"     // Version string of a non-release build.
	mainBranch = "main"        // Release branch, omitted from version strings.
)

// Set with -ldflags "-X github.com/tugbuild/tug/internal.version=...".
var (
	version   = ""
	stage     = ""
	gitCommit = ""
)

// Returns the release version without a leading "v", or "(undefined)".
func Version() string {
	v := strings.ToLower(strings.TrimSpace(version))
	if v == "" {
		return undefined
	}
	return strings.TrimPrefix(v, "v")
}

// Returns the branch or stage the binary was built from, or "(undefined)".
func Stage() string {
	if s := strings.TrimSpace(stage); s != "" {
		return strings.ToLower(s)
	}
	return undefined
}

// Returns the commit the binary was built from, or "(undefined)".
func GitCommit() string {
	if c := strings.TrimSpace(gitCommit); c != "" {
		return c
	}
	return undefined
}

// Reports whether any of the release linker variables is missing.
func IsLocal() bool {
	for _, v := range []string{version, stage, gitCommit} {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

// Returns "<version>[+<stage>] <commit> [<arch>]", or "(local)" for
// development builds.
func VersionString() string {
	if IsLocal() {
		return localBuild
	}

	suffix := ""
	if s := Stage(); s != mainBranch {
		suffix = "+" + s
	}

	return fmt.Sprintf("%s%s %s [%s]", Version(), suffix, GitCommit(), runtime.GOARCH)
}
