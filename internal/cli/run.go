package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/internal/audit"
	"github.com/taskgate/taskgate/internal/harness"
	"github.com/taskgate/taskgate/internal/history"
	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/policy"
	"github.com/taskgate/taskgate/internal/runner"
)

var (
	runPolicy     string
	runNoValidate bool
	runParams     string
	runAuditLog   string
	runHistory    string
	runMaxSteps   uint64
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "Path to policy YAML (default: ~/.taskgate/policy.yaml)")
	runCmd.Flags().BoolVar(&runNoValidate, "no-validate", false, "Skip the static validation gate")
	runCmd.Flags().StringVar(&runParams, "params", "", "JSON object overriding the request's params")
	runCmd.Flags().StringVar(&runAuditLog, "audit-log", "", "Append a hash-chained audit entry to this file")
	runCmd.Flags().StringVar(&runHistory, "history", "", "Record the execution in this history database")
	runCmd.Flags().Uint64Var(&runMaxSteps, "max-steps", 0, "Abort scripts after this many interpreter steps (0 = unlimited)")
}

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Validate and execute a task script request",
	Long: "Reads one {\"code\", \"params\"} JSON request from a file or stdin,\n" +
		"validates the script, executes it in the restricted namespace, and\n" +
		"prints the structured result as a single JSON line. Exit 0 for any\n" +
		"processed request, including failed executions; non-zero only when no\n" +
		"request could be read or parsed.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	pol, policyHash, err := policy.LoadWithHash(runPolicy)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	in, done, err := openInput(args)
	if err != nil {
		return err
	}
	defer done()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	req, reqErr := harness.ReadExecuteRequest(in)
	if reqErr != nil {
		res := model.Failure(reqErr.Error(), "", "")
		if err := harness.WriteResult(os.Stdout, res); err != nil {
			return err
		}
		if harness.IsNoRequest(reqErr) {
			os.Exit(1)
		}
		return nil
	}

	if runParams != "" {
		params, err := decodeParams(runParams)
		if err != nil {
			return err
		}
		req.Params = params
	}

	opts := harness.RunOptions{
		SkipValidate: runNoValidate,
		Runner:       runner.Options{MaxSteps: runMaxSteps},
	}

	start := time.Now()
	res := harness.Dispatch(ctx, req, pol, opts)
	elapsed := time.Since(start)

	recordRun(req.Code, res, elapsed, policyHash)

	return harness.WriteResult(os.Stdout, res)
}

// decodeParams parses the --params override, keeping integers intact.
func decodeParams(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("invalid --params JSON: %w", err)
	}
	return params, nil
}

// recordRun appends audit and history records when the flags ask for them.
// Recording failures are warnings, not execution failures.
func recordRun(code string, res model.Result, elapsed time.Duration, policyHash string) {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}

	if runAuditLog != "" {
		log, err := audit.Open(runAuditLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot open audit log: %v\n", err)
		} else {
			defer log.Close()
			if err := log.Record(audit.Entry{
				RequestID:  uuid.NewString(),
				Kind:       "execute",
				SourceHash: model.SourceHash(code),
				Outcome:    outcome,
				Detail:     res.Error,
				PolicyHash: policyHash,
			}); err != nil {
				fmt.Fprintf(os.Stderr, "warning: audit record failed: %v\n", err)
			}
		}
	}

	if runHistory != "" {
		store, err := history.Open(runHistory)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot open history database: %v\n", err)
			return
		}
		defer store.Close()
		if _, err := store.Record(history.Execution{
			SourceHash:  model.SourceHash(code),
			Success:     res.Success,
			Error:       res.Error,
			DurationMS:  elapsed.Milliseconds(),
			StdoutBytes: len(res.Stdout),
			StderrBytes: len(res.Stderr),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "warning: history record failed: %v\n", err)
		}
	}
}
