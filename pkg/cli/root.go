package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// exitError carries a process exit code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "statemock",
		Short: "statemock serves HTTP mocks that remember state",
		Long: `statemock serves HTTP mocks backed by per-resource state machines.

Each configured path pattern tracks every resource it sees (an order, a
payment, a user) in its own state. Requests can move a resource from one
state to another, and the response always reflects the current state.

Flags default to STATEMOCK_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newValidateCmd(),
		newEvalCmd(),
		newSchemaCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and exits the process on failure.
func Execute() {
	os.Exit(Run(os.Args[1:]))
}

// Run runs the CLI with args and returns the process exit code.
func Run(args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)
	return exitCode(root, root.Execute())
}

// exitCode reports err on root's stderr and maps it to an exit code.
func exitCode(root *cobra.Command, err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	return 1
}
