package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/internal/policy"
)

var initPolicyForce bool

func init() {
	rootCmd.AddCommand(initPolicyCmd)
	initPolicyCmd.Flags().BoolVar(&initPolicyForce, "force", false, "Overwrite an existing policy file")
}

var initPolicyCmd = &cobra.Command{
	Use:   "init-policy [path]",
	Short: "Write the default policy file",
	Long:  "Writes a commented default policy YAML to the given path,\nor ~/.taskgate/policy.yaml when no path is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInitPolicy,
}

func runInitPolicy(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, ".taskgate", "policy.yaml")
	}

	if !initPolicyForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(policy.DefaultPolicyYAML()), 0644); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}

	fmt.Printf("wrote default policy to %s\n", path)
	return nil
}
