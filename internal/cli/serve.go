package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/internal/mcp"
)

var (
	servePolicy   string
	serveAuditLog string
	serveHistory  string
	serveMaxSteps uint64
	serveNoWatch  bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to policy YAML (default: ~/.taskgate/policy.yaml)")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Append hash-chained audit entries to this file")
	serveCmd.Flags().StringVar(&serveHistory, "history", "", "Record executions in this history database")
	serveCmd.Flags().Uint64Var(&serveMaxSteps, "max-steps", 0, "Abort scripts after this many interpreter steps (0 = unlimited)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Disable policy hot-reload")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP gate server on stdio",
	Long: "Exposes script_validate and script_run as MCP tools over stdio.\n" +
		"The policy file is hot-reloaded on change unless --no-watch is set.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := mcp.New(mcp.Config{
		PolicyPath:   servePolicy,
		AuditLogPath: serveAuditLog,
		HistoryPath:  serveHistory,
		MaxSteps:     serveMaxSteps,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !serveNoWatch && servePolicy != "" {
		reloader, err := mcp.NewReloader(srv, servePolicy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: policy hot-reload disabled: %v\n", err)
		} else {
			go reloader.Run(ctx)
		}
	}

	fmt.Fprintln(os.Stderr, "taskgate MCP server listening on stdio")
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
