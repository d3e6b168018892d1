// Package mcpserver exposes guidelint checks as Model Context Protocol tools
// over stdio, so coding agents can check their own changes.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
)

const (
	serverName = "guidelint"
	toolCount  = 2
)

// SettingsFunc resolves run settings for a project root. configPath may be empty.
type SettingsFunc func(projectRoot, configPath string) (compliance.Settings, error)

// ServerDeps holds injectable dependencies for the MCP server.
type ServerDeps struct {
	// Settings loads configuration for the project named in a tool call.
	Settings SettingsFunc

	// RunnerOptions are applied to every runner the server builds.
	RunnerOptions []compliance.Option

	// Version is reported as the server implementation version.
	Version string

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with guidelint tool registrations.
type Server struct {
	inner  *mcpsdk.Server
	deps   ServerDeps
	mu     sync.RWMutex
	tools  []string
	tracer trace.Tracer
	// runs serializes checks: runs on one project root must not overlap.
	runs sync.Mutex
}

// NewServer creates an MCP server with all guidelint tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	version := deps.Version
	if version == "" {
		version = "dev"
	}

	inner := mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version}, opts)

	srv := &Server{
		inner:  inner,
		deps:   deps,
		tools:  make([]string, 0, toolCount),
		tracer: deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameCheck,
		Description: checkToolDescription,
	}, withTracing(s.tracer, ToolNameCheck, s.handleCheck))
	s.trackTool(ToolNameCheck)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameCacheStats,
		Description: cacheStatsToolDescription,
	}, withTracing(s.tracer, ToolNameCacheStats, s.handleCacheStats))
	s.trackTool(ToolNameCacheStats)
}

const mcpSpanPrefix = "mcp."

// withTracing wraps a tool handler in an OTel span per invocation.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)
		if result != nil && result.IsError {
			span.SetAttributes(attribute.Bool("mcp.tool.error", true))
		}

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

const (
	checkToolDescription = "Check source files against the project's guidelines document (CLAUDE.md by default). " +
		"Unchanged files reuse cached verdicts. Modes: full, diff (needs base_branch), working, staged."

	cacheStatsToolDescription = "Report the size and freshness of a project's guidelint verdict cache."
)
