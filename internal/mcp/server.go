// Package mcp exposes the validator/runner gate to agent hosts as MCP
// tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/taskgate/taskgate/internal/audit"
	"github.com/taskgate/taskgate/internal/history"
	"github.com/taskgate/taskgate/internal/policy"
)

// Config holds MCP server configuration.
type Config struct {
	PolicyPath   string
	AuditLogPath string
	HistoryPath  string
	MaxSteps     uint64
}

// Server wraps the MCP SDK server around the two-stage gate. The policy is
// swapped atomically by the hot-reload watcher; everything else is
// per-request state owned by the handlers.
type Server struct {
	mcpServer *mcpsdk.Server
	auditLog  *audit.Log
	hist      *history.Store
	cfg       Config

	mu         sync.RWMutex
	pol        *policy.Policy
	policyHash string
}

// New creates an MCP server with a loaded policy and, when configured, an
// audit log and a history store.
func New(cfg Config) (*Server, error) {
	pol, policyHash, err := policy.LoadWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	var hist *history.Store
	if cfg.HistoryPath != "" {
		hist, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
	}

	s := &Server{
		auditLog:   auditLog,
		hist:       hist,
		cfg:        cfg,
		pol:        pol,
		policyHash: policyHash,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "taskgate",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases the audit log and history store if configured.
func (s *Server) Close() error {
	var firstErr error
	if s.auditLog != nil {
		if err := s.auditLog.Close(); err != nil {
			firstErr = err
		}
	}
	if s.hist != nil {
		if err := s.hist.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReloadPolicy re-reads the policy file and swaps it in for subsequent
// requests. In-flight requests keep the policy they started with.
func (s *Server) ReloadPolicy() error {
	pol, policyHash, err := policy.LoadWithHash(s.cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	s.mu.Lock()
	s.pol = pol
	s.policyHash = policyHash
	s.mu.Unlock()
	return nil
}

func (s *Server) currentPolicy() (*policy.Policy, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pol, s.policyHash
}

// registerTools adds the gate's tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "script_validate",
		Description: "Statically validate a task script against import, structure, and call policy. Returns the itemized violations without executing anything.",
	}, s.handleValidate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "script_run",
		Description: "Validate and execute a task script in the restricted namespace. The script must define run(params); the return value, captured stdout/stderr, and any failure trace come back structured.",
	}, s.handleRun)
}
