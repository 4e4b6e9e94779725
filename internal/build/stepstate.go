package build

import (
	"slices"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// Shell used for RUN and for shell-form CMD and ENTRYPOINT.
const defaultShell = "/bin/sh"

// PATH assumed when the base image does not set one.
const defaultPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Tracks the environment accumulated across instructions.
//
// Variables keep the position of their first definition; redefining one
// replaces its value in place. The state is reset by every FROM.
type stepState struct {
	shell string
	env   []string // "KEY=value" entries.
}

// Creates a new [stepState] seeded with a base image environment.
func newStepState(base []string) *stepState {
	s := &stepState{shell: defaultShell}
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		s.set(k, v)
	}
	if s.lookup("PATH") == "" {
		s.env = append(s.env, defaultPath)
	}
	return s
}

// Defines or replaces a variable.
func (s *stepState) set(key, value string) {
	entry := key + "=" + value
	for i, kv := range s.env {
		if k, _, _ := strings.Cut(kv, "="); k == key {
			s.env[i] = entry
			return
		}
	}
	s.env = append(s.env, entry)
}

// Returns the value of a variable, or "" if it is not defined.
func (s *stepState) lookup(key string) string {
	for _, kv := range s.env {
		if k, v, _ := strings.Cut(kv, "="); k == key {
			return v
		}
	}
	return ""
}

// Expands $VAR and ${VAR} references against the accumulated environment.
// Undefined variables expand to "".
func (s *stepState) expand(word string) (string, error) {
	return shell.Expand(word, s.lookup)
}

// Returns a copy of the environment as "key=value" strings.
func (s *stepState) environ() []string {
	return slices.Clone(s.env)
}
