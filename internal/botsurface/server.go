// Package botsurface exposes the daemon's command vocabulary as MCP tools so
// chat assistants can drive the timer by name. Every tool maps 1:1 onto a
// daemon command; the surface adds no behavior of its own.
package botsurface

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jwulff/hush/internal/daemon"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Hush Timer MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Commander sends one command to the daemon and returns its response.
// *daemon.Client satisfies it.
type Commander interface {
	SendCommand(daemon.Command) (daemon.Response, error)
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *server.MCPServer
}

// SetVoiceInput is the MCP tool input for hush_set_voice.
type SetVoiceInput struct {
	Enabled *bool   `json:"enabled"`
	Mode    string  `json:"mode"`
	Keyword *string `json:"keyword"`
}

// SetCountdownInput is the MCP tool input for hush_set_countdown.
type SetCountdownInput struct {
	CountdownMs int64 `json:"countdownMs"`
}

// SimulateInput is the MCP tool input for hush_simulate.
type SimulateInput struct {
	Text string `json:"text"`
}

// HistoryInput is the MCP tool input for hush_history.
type HistoryInput struct {
	Limit int `json:"limit"`
}

// New creates a configured MCP server over a daemon command connection.
func New(commander Commander) *Server {
	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	mcpServer.AddTool(
		mcp.NewTool("hush_start",
			mcp.WithDescription("Start a timer session. No-op if one is already running."),
		),
		bareCommandHandler(commander, daemon.CmdStart),
	)

	mcpServer.AddTool(
		mcp.NewTool("hush_stop",
			mcp.WithDescription("Stop the running timer session. No-op if nothing is running."),
		),
		bareCommandHandler(commander, daemon.CmdStop),
	)

	mcpServer.AddTool(
		mcp.NewTool("hush_reset",
			mcp.WithDescription("Reset the session to idle. History is kept."),
		),
		bareCommandHandler(commander, daemon.CmdReset),
	)

	mcpServer.AddTool(
		mcp.NewTool("hush_status",
			mcp.WithDescription("Read the current session and voice configuration."),
		),
		bareCommandHandler(commander, daemon.CmdStatus),
	)

	mcpServer.AddTool(
		mcp.NewTool("hush_refresh",
			mcp.WithDescription("Re-broadcast the current state to all subscribed displays."),
		),
		bareCommandHandler(commander, daemon.CmdRefresh),
	)

	mcpServer.AddTool(
		mcp.NewTool("hush_set_voice",
			mcp.WithDescription("Configure the speech auto-stop: enable/disable, mode (any|keyword), keyword."),
			mcp.WithInputSchema[SetVoiceInput](),
		),
		setVoiceHandler(commander),
	)

	mcpServer.AddTool(
		mcp.NewTool("hush_set_countdown",
			mcp.WithDescription("Bound the next run to a duration in milliseconds. 0 means open-ended."),
			mcp.WithInputSchema[SetCountdownInput](),
		),
		setCountdownHandler(commander),
	)

	mcpServer.AddTool(
		mcp.NewTool("hush_simulate",
			mcp.WithDescription("Feed an utterance through the auto-stop policy as if it were recognized speech."),
			mcp.WithInputSchema[SimulateInput](),
		),
		simulateHandler(commander),
	)

	mcpServer.AddTool(
		mcp.NewTool("hush_history",
			mcp.WithDescription("List finished sessions, most recent first."),
			mcp.WithInputSchema[HistoryInput](),
		),
		historyHandler(commander),
	)

	return &Server{mcpServer: mcpServer}
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// bareCommandHandler forwards a command that takes no arguments.
func bareCommandHandler(commander Commander, cmd string) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return send(commander, daemon.Command{Cmd: cmd})
	}
}

func setVoiceHandler(commander Commander) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input SetVoiceInput
		if err := request.BindArguments(&input); err != nil {
			return mcp.NewToolResultErrorFromErr("invalid set_voice arguments", err), nil
		}
		return send(commander, daemon.Command{
			Cmd:     daemon.CmdSetVoice,
			Enabled: input.Enabled,
			Mode:    input.Mode,
			Keyword: input.Keyword,
		})
	}
}

func setCountdownHandler(commander Commander) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input SetCountdownInput
		if err := request.BindArguments(&input); err != nil {
			return mcp.NewToolResultErrorFromErr("invalid set_countdown arguments", err), nil
		}
		if input.CountdownMs < 0 {
			return mcp.NewToolResultError("countdownMs must be non-negative"), nil
		}
		return send(commander, daemon.Command{
			Cmd:         daemon.CmdSetCountdown,
			CountdownMs: daemon.Int64Ptr(input.CountdownMs),
		})
	}
}

func simulateHandler(commander Commander) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input SimulateInput
		if err := request.BindArguments(&input); err != nil {
			return mcp.NewToolResultErrorFromErr("invalid simulate arguments", err), nil
		}
		return send(commander, daemon.Command{Cmd: daemon.CmdSimulate, Text: input.Text})
	}
}

func historyHandler(commander Commander) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input HistoryInput
		if err := request.BindArguments(&input); err != nil {
			return mcp.NewToolResultErrorFromErr("invalid history arguments", err), nil
		}
		cmd := daemon.Command{Cmd: daemon.CmdHistory}
		if input.Limit > 0 {
			cmd.Limit = &input.Limit
		}
		return send(commander, cmd)
	}
}

// send forwards one command and converts the daemon response to a tool result.
func send(commander Commander, cmd daemon.Command) (*mcp.CallToolResult, error) {
	resp, err := commander.SendCommand(cmd)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("daemon unreachable", err), nil
	}
	if !resp.OK {
		return mcp.NewToolResultError(resp.Error), nil
	}
	return mcp.NewToolResultStructuredOnly(resp), nil
}
