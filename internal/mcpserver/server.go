// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the documentation publishing tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/docs"
	"github.com/starford/ansuz/internal/reconcile"
)

// SyncRunner runs one reconciliation pass against the forum.
type SyncRunner interface {
	Sync(ctx context.Context, dryRun bool) (*reconcile.Report, error)
}

// DocsReader re-reads the local documentation tree.
type DocsReader interface {
	Docs() (*docs.Tree, error)
}

// Server wraps the MCP server with the publishing tools.
type Server struct {
	mcp    *server.MCPServer
	runner SyncRunner
	reader DocsReader
}

// New creates a new MCP server with all tools registered.
func New(runner SyncRunner, reader DocsReader) *Server {
	s := &Server{runner: runner, reader: reader}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("plan_sync",
		mcp.WithDescription("Compute the publish plan without touching the forum: "+
			"which topics would be created, updated, deleted or left alone."),
	), s.planSync)

	s.mcp.AddTool(mcp.NewTool("publish_docs",
		mcp.WithDescription("Publish the documentation tree to the forum and "+
			"return the action map keyed by topic URL."),
	), s.publishDocs)

	s.mcp.AddTool(mcp.NewTool("list_docs",
		mcp.WithDescription("List the local documentation tree: table path, "+
			"level, title and source file of every entry."),
	), s.listDocs)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// runResult is the tool-facing shape of a reconciliation report.
type runResult struct {
	IndexURL string                   `json:"index_url,omitempty"`
	Actions  map[string]string        `json:"urls_with_actions"`
	Records  []reconcile.ActionRecord `json:"records"`
}

func toRunResult(report *reconcile.Report) runResult {
	return runResult{
		IndexURL: report.IndexURL,
		Actions:  report.URLsWithActions(),
		Records:  report.Records,
	}
}

func (s *Server) planSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.runner.Sync(ctx, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(toRunResult(report), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) publishDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.runner.Sync(ctx, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(toRunResult(report), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// docEntry is the tool-facing shape of one tree entry.
type docEntry struct {
	Path  string `json:"path"`
	Level int    `json:"level"`
	Title string `json:"title"`
	File  string `json:"file,omitempty"`
	Group bool   `json:"group,omitempty"`
}

func (s *Server) listDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tree, err := s.reader.Docs()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read docs tree: %v", err)), nil
	}

	entries := make([]docEntry, 0, len(tree.Docs))
	for _, d := range tree.Docs {
		entries = append(entries, docEntry{
			Path:  d.TablePath,
			Level: d.Level,
			Title: d.Title,
			File:  d.FilePath,
			Group: d.IsGroup(),
		})
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
