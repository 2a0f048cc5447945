// Package cli implements the taskgate command-line front end.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskgate",
	Short: "Validated, capability-restricted execution of untrusted task scripts",
	Long: "taskgate is a two-stage gate for short untrusted scripts: a static\n" +
		"validator that enforces import, structure, and call policy, and a runner\n" +
		"that executes accepted scripts in a namespace exposing only whitelisted\n" +
		"primitives. Results come back as structured JSON, never raw interpreter\n" +
		"output.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openInput returns the request reader: the named file when an argument is
// given, stdin otherwise.
func openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	return f, func() { f.Close() }, nil
}
