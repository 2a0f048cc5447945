// Package harness implements the JSON boundary between a host process and
// the validator/runner core. Boundary failures (unreadable input, empty
// input, malformed JSON, missing code) are reported here as top-level
// failure payloads and never reach the core.
package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/policy"
	"github.com/taskgate/taskgate/internal/runner"
	"github.com/taskgate/taskgate/internal/validator"
)

// noRequestError marks boundary failures where no request could be read or
// parsed at all. Front ends map these to a non-zero exit status; every
// other outcome is a fully processed request and exits zero.
type noRequestError struct{ msg string }

func (e *noRequestError) Error() string { return e.msg }

func noRequest(format string, args ...any) error {
	return &noRequestError{msg: fmt.Sprintf(format, args...)}
}

// IsNoRequest reports whether err means no request could be read or parsed.
func IsNoRequest(err error) bool {
	var nr *noRequestError
	return errors.As(err, &nr)
}

// wireReport is the validator response shape.
type wireReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate reads raw script source from r, validates it against pol, and
// writes the {"valid","errors"} response to w. Empty input is reported in
// the response without invoking the validator.
func Validate(r io.Reader, w io.Writer, pol *policy.Policy) error {
	src, err := io.ReadAll(r)
	if err != nil {
		writeReport(w, false, []string{fmt.Sprintf("unreadable input: %v", err)})
		return noRequest("unreadable input: %v", err)
	}
	if strings.TrimSpace(string(src)) == "" {
		return writeReport(w, false, []string{"empty script input"})
	}
	rep := validator.Validate(string(src), pol)
	return writeReport(w, rep.Valid, rep.Messages())
}

func writeReport(w io.Writer, valid bool, errs []string) error {
	if errs == nil {
		errs = []string{}
	}
	return json.NewEncoder(w).Encode(wireReport{Valid: valid, Errors: errs})
}

// ReadExecuteRequest decodes one {"code","params"} request. Params default
// to an empty map; numbers arrive as json.Number so integers survive the
// trip into the script.
func ReadExecuteRequest(r io.Reader) (*model.ExecuteRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, noRequest("unreadable input: %v", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, noRequest("no input provided")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var req model.ExecuteRequest
	if err := dec.Decode(&req); err != nil {
		return nil, noRequest("invalid JSON request: %v", err)
	}
	if req.Code == "" {
		return nil, errors.New("no code provided")
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	return &req, nil
}

// RunOptions configure one pass through the gate.
type RunOptions struct {
	// SkipValidate bypasses the static gate; the restricted namespace
	// still applies.
	SkipValidate bool
	Runner       runner.Options
}

// Dispatch runs the two-stage gate: static validation, then execution in
// the restricted namespace. A validation failure surfaces as a failed
// result whose error lists every violation.
func Dispatch(ctx context.Context, req *model.ExecuteRequest, pol *policy.Policy, opts RunOptions) model.Result {
	if !opts.SkipValidate {
		rep := validator.Validate(req.Code, pol)
		if !rep.Valid {
			return model.Failure("validation failed:\n"+strings.Join(rep.Messages(), "\n"), "", "")
		}
	}
	return runner.Execute(ctx, req.Code, req.Params, pol, opts.Runner)
}

// Run reads one execute request from r, sends it through the gate, and
// writes the result JSON to w. Boundary failures still produce a result
// line; the returned error satisfies IsNoRequest when nothing could be
// read or parsed.
func Run(ctx context.Context, r io.Reader, w io.Writer, pol *policy.Policy, opts RunOptions) (model.Result, error) {
	req, err := ReadExecuteRequest(r)
	if err != nil {
		res := model.Failure(err.Error(), "", "")
		if werr := WriteResult(w, res); werr != nil {
			return res, werr
		}
		if IsNoRequest(err) {
			return res, err
		}
		// Missing code: a processed request, reported in the payload.
		return res, nil
	}

	res := Dispatch(ctx, req, pol, opts)
	return res, WriteResult(w, res)
}

// WriteResult encodes one result as a single JSON line.
func WriteResult(w io.Writer, res model.Result) error {
	return json.NewEncoder(w).Encode(res)
}
