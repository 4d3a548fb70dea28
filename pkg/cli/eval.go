package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/statemock/pkg/condition"
)

// EvalResult is printed by "statemock eval --json".
type EvalResult struct {
	Condition string `json:"condition"`
	Result    bool   `json:"result"`
}

type evalFlags struct {
	method     string
	path       string
	headers    []string
	query      []string
	body       string
	bodyFile   string
	exitStatus bool
	jsonOutput bool
}

func newEvalCmd() *cobra.Command {
	var f evalFlags
	cmd := &cobra.Command{
		Use:   "eval <condition>",
		Short: "Evaluate a transition condition against a request",
		Long: `Evaluate a transition condition against a request described by flags.

Conditions use the same grammar as the "condition" field of a transition:
JSONPath existence ($.user.id), comparisons ($.amount > 100,
headers.x-env == prod, query.debug == 1, path == /a, method == POST),
XPath selectors (/order/@id == 7), AND(...), OR(...), NOT(...) and expr:
expressions. An empty condition is always true.`,
		Example: `  statemock eval '$.amount > 100' --body '{"amount": 250}'
  statemock eval 'AND(method == POST, headers.x-env == prod)' -X POST -H 'X-Env: prod'
  statemock eval 'query.debug == 1' --path '/orders/1?debug=1' --exit-status`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.method, "method", "X", http.MethodGet, "Request method")
	cmd.Flags().StringVar(&f.path, "path", "/", "Request path, optionally with a query string")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, `Request header as "Name: value" (repeatable)`)
	cmd.Flags().StringArrayVarP(&f.query, "query", "q", nil, `Query parameter as "name=value" (repeatable)`)
	cmd.Flags().StringVarP(&f.body, "body", "d", "", "Request body")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", `Read the request body from a file ("-" for stdin)`)
	cmd.Flags().BoolVar(&f.exitStatus, "exit-status", false, "Exit with status 1 when the condition is false")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func runEval(cmd *cobra.Command, source string, f evalFlags) error {
	c := condition.Compile(source)
	if err := c.Err(); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}

	u, err := url.Parse(f.path)
	if err != nil {
		return fmt.Errorf("invalid --path: %w", err)
	}
	query := u.Query()
	for _, kv := range f.query {
		name, value, _ := strings.Cut(kv, "=")
		query.Add(name, value)
	}

	headers := http.Header{}
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid --header %q: expected \"Name: value\"", h)
		}
		headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	body := []byte(f.body)
	switch f.bodyFile {
	case "":
	case "-":
		if body, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	default:
		if body, err = os.ReadFile(f.bodyFile); err != nil {
			return fmt.Errorf("reading body file: %w", err)
		}
	}

	ctx := condition.NewContext(strings.ToUpper(f.method), u.Path, headers, query, body)
	result, err := c.Evaluate(ctx)
	if err != nil {
		return err
	}

	if f.jsonOutput {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(EvalResult{Condition: source, Result: result}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), result)
	}

	if f.exitStatus && !result {
		return &exitError{code: 1}
	}
	return nil
}
