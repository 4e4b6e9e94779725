package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/tugbuild/tug/internal"
	"github.com/tugbuild/tug/internal/build"
	"github.com/tugbuild/tug/internal/image"
	"github.com/tugbuild/tug/internal/paths"
	"github.com/tugbuild/tug/internal/protocol"
)

// Handles a build command.
//
// Waits for a build slot, then executes the instruction list against the
// configured staging root. The context directory must be absolute since
// the daemon's working directory is unrelated to the client's.
func (s *Server) handleBuild(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
	if err != nil {
		s.respondError(conn, err)
		return
	}
	if req.ContextDir != "" && !filepath.IsAbs(req.ContextDir) {
		s.respondError(conn, fmt.Errorf("%w: context directory must be absolute: %s", ErrBadRequest, req.ContextDir))
		return
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		s.respondError(conn, err)
		return
	}
	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
		s.slots.Release(1)
	}()

	result, err := build.Run(ctx, build.Options{
		Instructions: req.Instructions,
		StagingRoot:  s.cfg.StagingRoot,
		ContextDir:   req.ContextDir,
		Puller:       s.cfg.Puller,
		Runner:       s.cfg.Runner,
		Strict:       req.Strict || s.cfg.Strict,
	})
	if err != nil {
		slog.Warn("build failed", "error", err)
		reply := &protocol.ErrorResult{Message: err.Error()}
		if result != nil {
			reply.BuildID, reply.Dir = result.BuildID, result.Dir
		}
		s.respond(conn, protocol.CmdError, reply)
		return
	}

	s.mu.Lock()
	s.builds++
	s.mu.Unlock()

	warnings := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		warnings = append(warnings, w.String())
	}

	s.respond(conn, protocol.CmdOK, &protocol.BuildResult{
		Success:  result.Success,
		BuildID:  result.BuildID,
		Rootfs:   result.Rootfs,
		Dir:      result.Dir,
		Warnings: warnings,
	})
}

// Handles a pull command.
func (s *Server) handlePull(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.PullRequest](payload)
	if err != nil {
		s.respondError(conn, err)
		return
	}
	if req.Image == "" || !filepath.IsAbs(req.Dest) {
		s.respondError(conn, fmt.Errorf("%w: pull needs an image and an absolute destination", ErrBadRequest))
		return
	}

	if err := os.MkdirAll(req.Dest, paths.DefaultDirMode); err != nil {
		s.respondError(conn, err)
		return
	}

	result, err := s.cfg.Puller.Pull(ctx, image.ParseReference(req.Image), req.Dest)
	if err != nil {
		s.respondError(conn, err)
		return
	}

	s.respond(conn, protocol.CmdOK, &protocol.PullResult{Digest: result.Digest, Dest: req.Dest})
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	builds, active := s.builds, s.active
	s.mu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  uptime.String(),
		Builds:  builds,
		Active:  active,
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}
