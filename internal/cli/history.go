package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/internal/history"
)

var (
	historyPath  string
	historyLimit int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyPath, "history", "", "Path to history database (default: ~/.taskgate/history.db)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of entries to show")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent script executions",
	RunE:  runHistoryCmd,
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	path := historyPath
	if path == "" {
		var err error
		path, err = history.DefaultPath()
		if err != nil {
			return err
		}
	}

	store, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	entries, err := store.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		line := fmt.Sprintf("%s  %-6s  %s  %dms", e.Timestamp, status, e.SourceHash, e.DurationMS)
		if e.Error != "" {
			line += "  " + firstLine(e.Error)
		}
		fmt.Println(line)
	}

	st, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	fmt.Printf("\n%d executions, %d failed\n", st.Total, st.Failed)
	return nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
