package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tugbuild/tug/internal/tugfile"
)

var ErrMalformed = errors.New("malformed message")

// Names a request or response kind.
type Command string

const (
	CmdBuild    Command = "build"
	CmdPull     Command = "pull"
	CmdStatus   Command = "status"
	CmdShutdown Command = "shutdown"
	CmdOK       Command = "ok"
	CmdError    Command = "error"
)

// Wire form of every message.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Requests a build from an instruction list.
type BuildRequest struct {
	Instructions tugfile.List `json:"instructions"`
	ContextDir   string       `json:"context_dir,omitempty"` // Absolute path on the daemon's host.
	Strict       bool         `json:"strict,omitempty"`
}

type BuildResult struct {
	Success  bool     `json:"success"`
	BuildID  string   `json:"build_id,omitempty"`
	Rootfs   string   `json:"rootfs,omitempty"`
	Dir      string   `json:"dir,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Requests that an image's layers be extracted into a directory.
type PullRequest struct {
	Image string `json:"image"`
	Dest  string `json:"dest"`
}

type PullResult struct {
	Digest string `json:"digest"`
	Dest   string `json:"dest"`
}

type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Builds  int    `json:"builds"` // Builds completed since start.
	Active  int    `json:"active"` // Builds in progress.
}

type ErrorResult struct {
	Message string `json:"message"`
	BuildID string `json:"build_id,omitempty"` // Set when a build failed after FROM.
	Dir     string `json:"dir,omitempty"`      // Directory of the failed build, kept for inspection.
}

// Encodes a command and payload into a single envelope. A nil payload is
// omitted. The result carries no trailing newline.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", cmd, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decodes one envelope, returning it along with its raw payload.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if env.Command == "" {
		return nil, nil, fmt.Errorf("%w: missing command", ErrMalformed)
	}
	return &env, env.Payload, nil
}

// Decodes a raw payload into T. An empty payload yields T's zero value.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &v, nil
}
