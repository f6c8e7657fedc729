package querypilotctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/querypilot/querypilot/internal/conn"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Connection conn.Details
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// requestError marks failures that happen after the command line was accepted.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

var errNoCommand = errors.New("a command is required")

// Run executes one querypilotctl invocation and returns the process exit code.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCommand(defaults, stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		_, _ = fmt.Fprintln(stderr, reqErr.Error())
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n\n", err)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

type client struct {
	baseURL    string
	timeout    time.Duration
	details    conn.Details
	httpClient *http.Client
	stdout     io.Writer
}

func newRootCommand(defaults Options, stdout io.Writer) *cobra.Command {
	c := &client{
		baseURL:    firstNonEmpty(defaults.BaseURL, "http://localhost:8000"),
		timeout:    durationOr(defaults.Timeout, 60*time.Second),
		details:    defaults.Connection,
		httpClient: defaults.HTTPClient,
		stdout:     stdout,
	}

	root := &cobra.Command{
		Use:           "querypilotctl",
		Short:         "Talk to a QueryPilot API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return errNoCommand
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.baseURL, "base-url", c.baseURL, "QueryPilot API base URL")
	flags.DurationVar(&c.timeout, "timeout", c.timeout, "HTTP timeout (e.g. 30s)")
	flags.StringVar(&c.details.Username, "username", c.details.Username, "database user")
	flags.StringVar(&c.details.Password, "password", c.details.Password, "database password")
	flags.StringVar(&c.details.Hostname, "hostname", c.details.Hostname, "database host, optionally host:port")
	flags.StringVar(&c.details.Database, "database", c.details.Database, "database name or file path")
	flags.Var((*dialectValue)(&c.details.Dialect), "dialect", "mysql, postgres, sqlite, duckdb or sqlserver")

	root.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "GET /health",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.call(cmd.Context(), http.MethodGet, "/health", nil)
			},
		},
		&cobra.Command{
			Use:   "connect",
			Short: "Connect and capture the schema snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.call(cmd.Context(), http.MethodPost, "/connect/", c.details)
			},
		},
		&cobra.Command{
			Use:   "update-model",
			Short: "Refresh the schema snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.call(cmd.Context(), http.MethodPost, "/update_model/", c.details)
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Show the schema snapshot that grounds translations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.call(cmd.Context(), http.MethodPost, "/schema/", c.details)
			},
		},
		newTranslateCommand(c),
		&cobra.Command{
			Use:   "execute <sql>",
			Short: "Run a SQL statement",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.call(cmd.Context(), http.MethodPost, "/execute_query/", map[string]any{
					"sql_query":          strings.Join(args, " "),
					"connection_details": c.details,
				})
			},
		},
		&cobra.Command{
			Use:   "explain <sql>",
			Short: "Explain a SQL statement in plain language",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				body := map[string]any{"sql_query": strings.Join(args, " ")}
				if c.hasConnection() {
					body["connection_details"] = c.details
				}
				return c.call(cmd.Context(), http.MethodPost, "/explain_query/", body)
			},
		},
	)
	return root
}

func newTranslateCommand(c *client) *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "translate <request...>",
		Short: "Translate a natural-language request into SQL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"natural_language_query": strings.Join(args, " ")}
			if execute {
				body["execute"] = true
			}
			if c.hasConnection() {
				body["connection_details"] = c.details
			}
			return c.call(cmd.Context(), http.MethodPost, "/translate_query/", body)
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "run the translated statement")
	return cmd
}

func (c *client) hasConnection() bool {
	return c.details.Username != "" || c.details.Hostname != "" || c.details.Database != ""
}

func (c *client) call(ctx context.Context, method, path string, payload any) error {
	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.timeout}
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return &requestError{err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(encoded)
	}
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &requestError{err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return &requestError{err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))}
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(c.stdout, pretty)
		return nil
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(c.stdout, string(responseBody))
	}
	return nil
}

type dialectValue conn.Dialect

func (d *dialectValue) String() string { return string(*d) }

func (d *dialectValue) Set(raw string) error {
	dialect, err := conn.ParseDialect(raw)
	if err != nil {
		return err
	}
	*d = dialectValue(dialect)
	return nil
}

func (d *dialectValue) Type() string { return "dialect" }

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
