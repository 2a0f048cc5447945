package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/taskgate/taskgate/internal/audit"
	"github.com/taskgate/taskgate/internal/harness"
	"github.com/taskgate/taskgate/internal/history"
	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/runner"
	"github.com/taskgate/taskgate/internal/validator"
)

// ValidateInput defines parameters for the script_validate tool.
type ValidateInput struct {
	Code string `json:"code" jsonschema:"task script source"`
}

// ValidateOutput is the validator's verdict.
type ValidateOutput struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// RunInput defines parameters for the script_run tool.
type RunInput struct {
	Code         string         `json:"code" jsonschema:"task script source; must define run(params)"`
	Params       map[string]any `json:"params,omitempty" jsonschema:"payload passed to run"`
	SkipValidate bool           `json:"skip_validate,omitempty" jsonschema:"bypass the static validation gate"`
}

// RunOutput is the structured execution result.
type RunOutput struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
}

func (s *Server) handleValidate(ctx context.Context, req *mcpsdk.CallToolRequest, input ValidateInput) (*mcpsdk.CallToolResult, ValidateOutput, error) {
	pol, policyHash := s.currentPolicy()
	rep := validator.Validate(input.Code, pol)

	outcome := "valid"
	detail := ""
	if !rep.Valid {
		outcome = "invalid"
		detail = rep.Messages()[0]
	}
	s.recordAudit("validate", input.Code, outcome, detail, policyHash)

	out := ValidateOutput{Valid: rep.Valid, Errors: rep.Messages()}
	return nil, out, nil
}

func (s *Server) handleRun(ctx context.Context, req *mcpsdk.CallToolRequest, input RunInput) (*mcpsdk.CallToolResult, RunOutput, error) {
	pol, policyHash := s.currentPolicy()

	execReq := &model.ExecuteRequest{Code: input.Code, Params: input.Params}
	if execReq.Params == nil {
		execReq.Params = map[string]any{}
	}

	start := time.Now()
	res := harness.Dispatch(ctx, execReq, pol, harness.RunOptions{
		SkipValidate: input.SkipValidate,
		Runner:       runner.Options{MaxSteps: s.cfg.MaxSteps},
	})
	elapsed := time.Since(start)

	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	s.recordAudit("execute", input.Code, outcome, res.Error, policyHash)
	s.recordHistory(input.Code, res, elapsed)

	out := RunOutput{
		Success: res.Success,
		Data:    res.Data,
		Error:   res.Error,
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
	}
	if !res.Success {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) recordAudit(kind, code, outcome, detail, policyHash string) {
	if s.auditLog == nil {
		return
	}
	_ = s.auditLog.Record(audit.Entry{
		RequestID:  uuid.NewString(),
		Kind:       kind,
		SourceHash: model.SourceHash(code),
		Outcome:    outcome,
		Detail:     detail,
		PolicyHash: policyHash,
	})
}

func (s *Server) recordHistory(code string, res model.Result, elapsed time.Duration) {
	if s.hist == nil {
		return
	}
	_, _ = s.hist.Record(history.Execution{
		SourceHash:  model.SourceHash(code),
		Success:     res.Success,
		Error:       res.Error,
		DurationMS:  elapsed.Milliseconds(),
		StdoutBytes: len(res.Stdout),
		StderrBytes: len(res.Stderr),
	})
}
