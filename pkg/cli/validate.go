package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/statemock/pkg/config"
	"github.com/getmockd/statemock/pkg/stateful"
)

// ValidateResult reports the outcome for one document or path.
type ValidateResult struct {
	Path     string   `json:"path"`
	Valid    bool     `json:"valid"`
	Patterns []string `json:"patterns,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func newValidateCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check config documents without serving them",
		Long: `Check config documents without serving them.

Each path may be a file, a directory (every .yaml, .yml and .json file below
it) or a glob such as "mocks/**/*.yaml". Documents are checked against the
schema and then registered with a scratch engine, so every error serve would
report is reported here. The exit status is 1 when any document is invalid.`,
		Example: `  statemock validate mocks/orders.yaml
  statemock validate 'mocks/**/*.yaml' --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := validatePaths(args)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				printValidateResults(cmd, results)
			}

			for _, r := range results {
				if !r.Valid {
					return &exitError{code: 1}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func validatePaths(paths []string) []ValidateResult {
	var results []ValidateResult
	for _, p := range paths {
		docs, err := config.Load(p)
		if err != nil {
			results = append(results, ValidateResult{Path: p, Errors: errorLines(err)})
			continue
		}
		if len(docs) == 0 {
			results = append(results, ValidateResult{Path: p, Errors: []string{"no config documents found"}})
			continue
		}
		for _, doc := range docs {
			r := ValidateResult{Path: doc.Source, Patterns: doc.Patterns()}
			if err := doc.Apply(stateful.NewHandler()); err != nil {
				r.Errors = errorLines(err)
			}
			r.Valid = len(r.Errors) == 0
			results = append(results, r)
		}
	}
	return results
}

// errorLines flattens validation results and joined errors into one line
// per problem.
func errorLines(err error) []string {
	var result *config.SchemaValidationResult
	if errors.As(err, &result) {
		lines := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			lines[i] = e.Error()
		}
		return lines
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var lines []string
		for _, e := range joined.Unwrap() {
			lines = append(lines, errorLines(e)...)
		}
		return lines
	}
	return []string{err.Error()}
}

func printValidateResults(cmd *cobra.Command, results []ValidateResult) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(out, "ok    %s (%d %s)\n", r.Path, len(r.Patterns), plural(len(r.Patterns), "pattern"))
			continue
		}
		fmt.Fprintf(out, "FAIL  %s\n", r.Path)
		for _, e := range r.Errors {
			fmt.Fprintf(out, "      %s\n", e)
		}
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
