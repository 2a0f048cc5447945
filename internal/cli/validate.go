package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/internal/harness"
	"github.com/taskgate/taskgate/internal/policy"
)

var validatePolicy string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validatePolicy, "policy", "", "Path to policy YAML (default: ~/.taskgate/policy.yaml)")
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Statically validate a task script",
	Long: "Reads raw script source from a file or stdin and checks it against the\n" +
		"import, structure, and call policy. Prints {\"valid\", \"errors\"} JSON.\n" +
		"No part of the script is executed. Exit 0 for any processed script;\n" +
		"non-zero only when the input could not be read.",
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	pol, err := policy.Load(validatePolicy)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	in, done, err := openInput(args)
	if err != nil {
		return err
	}
	defer done()

	if err := harness.Validate(in, os.Stdout, pol); err != nil {
		// The failure report is already on stdout; the exit code is the
		// only remaining signal.
		os.Exit(1)
	}
	return nil
}
