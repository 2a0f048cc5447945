// Package model defines the data contracts shared by the validator, the
// runner, and the host-facing harness.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ViolationKind classifies a single policy failure found by the validator.
type ViolationKind string

const (
	KindSyntaxError        ViolationKind = "syntax_error"
	KindStructural         ViolationKind = "structural_violation"
	KindMissingEntryPoint  ViolationKind = "missing_entry_point"
	KindForbiddenImport    ViolationKind = "forbidden_import"
	KindForbiddenCall      ViolationKind = "forbidden_call"
	KindForbiddenAttribute ViolationKind = "forbidden_attribute"
)

// Violation is one discrete policy failure with a human-readable message.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// Report is the validator's verdict on a script.
// Valid is true exactly when Violations is empty.
type Report struct {
	Valid      bool
	Violations []Violation
}

// Messages renders each violation as one human-readable string,
// in detection order.
func (r Report) Messages() []string {
	msgs := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// ExecuteRequest is one unit of work for the runner: a script that must
// define run(params), and the payload passed to it.
type ExecuteRequest struct {
	Code   string         `json:"code"`
	Params map[string]any `json:"params"`
}

// Result is the structured outcome of one execution.
// Success implies Error is empty; failure implies Data is nil. Stdout and
// Stderr hold everything the script produced up to the point of failure.
type Result struct {
	Success bool
	Data    any
	Error   string
	Stdout  string
	Stderr  string
}

// Failure returns a failed Result carrying whatever partial output the
// script produced before it died.
func Failure(errText, stdout, stderr string) Result {
	return Result{
		Error:  errText,
		Stdout: stdout,
		Stderr: stderr,
	}
}

// MarshalJSON emits the wire shape consumed by hosts: error is null on
// success, data is null on failure.
func (r Result) MarshalJSON() ([]byte, error) {
	type wire struct {
		Success bool    `json:"success"`
		Data    any     `json:"data"`
		Error   *string `json:"error"`
		Stdout  string  `json:"stdout"`
		Stderr  string  `json:"stderr"`
	}
	w := wire{Success: r.Success, Data: r.Data, Stdout: r.Stdout, Stderr: r.Stderr}
	if r.Error != "" {
		w.Error = &r.Error
	}
	return json.Marshal(w)
}

// SourceHash returns the SHA-256 content hash of a script, used to correlate
// audit and history entries without storing the source itself.
func SourceHash(source string) string {
	h := sha256.Sum256([]byte(source))
	return "sha256:" + hex.EncodeToString(h[:])
}
