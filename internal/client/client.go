package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/tugbuild/tug/internal/paths"
	"github.com/tugbuild/tug/internal/protocol"
)

// Talks to the daemon over its Unix socket.
type Client struct {
	socketPath string
	dialer     net.Dialer
}

// Creates a client for the daemon at socketPath. An empty path uses the
// default socket.
func New(socketPath string) *Client {
	if socketPath == "" {
		socketPath = paths.Socket()
	}
	return &Client{socketPath: socketPath}
}

// Asks the daemon to execute a build.
func (c *Client) Build(ctx context.Context, req *protocol.BuildRequest) (*protocol.BuildResult, error) {
	var result protocol.BuildResult
	if err := c.call(ctx, protocol.CmdBuild, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Asks the daemon to pull an image into a directory on its host.
func (c *Client) Pull(ctx context.Context, req *protocol.PullRequest) (*protocol.PullResult, error) {
	var result protocol.PullResult
	if err := c.call(ctx, protocol.CmdPull, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Returns the daemon's status.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResult, error) {
	var result protocol.StatusResult
	if err := c.call(ctx, protocol.CmdStatus, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Asks the daemon to stop.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.call(ctx, protocol.CmdShutdown, nil, nil)
}

// Performs one request-response exchange. out may be nil when the
// response carries no payload.
func (c *Client) call(ctx context.Context, cmd protocol.Command, payload, out any) error {
	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		return err
	}

	conn, err := c.dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	env, raw, err := protocol.Decode(line)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	switch env.Command {
	case protocol.CmdOK:
	case protocol.CmdError:
		msg, err := protocol.DecodePayload[protocol.ErrorResult](raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrProtocol, err)
		}
		return &DaemonError{Message: msg.Message, BuildID: msg.BuildID, Dir: msg.Dir}
	default:
		return fmt.Errorf("%w: %s", ErrProtocol, env.Command)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return nil
}
