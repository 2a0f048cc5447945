package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/internal/audit"
)

var auditTailCount int

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().IntVarP(&auditTailCount, "count", "n", 10, "Number of entries to show")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the hash-chained audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <log-file>",
	Short: "Verify the audit log's hash chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	res := audit.Verify(args[0])
	if !res.Valid {
		if res.ErrorLine > 0 {
			fmt.Printf("chain BROKEN at line %d: %s\n", res.ErrorLine, res.Error)
		} else {
			fmt.Printf("chain BROKEN: %s\n", res.Error)
		}
		os.Exit(1)
	}
	fmt.Printf("chain valid: %d entries\n", res.Lines)
	return nil
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <log-file>",
	Short: "Show the most recent audit entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > auditTailCount {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
