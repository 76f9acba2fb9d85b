package loglensctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// requestError marks failures talking to the API so Run can tell them apart
// from usage errors.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// Run executes one loglensctl invocation and returns the process exit code:
// 0 on success, 1 when the request fails, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := NewRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			_, _ = fmt.Fprintln(stderr, reqErr.Error())
			return 1
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n\n", err)
		_, _ = fmt.Fprint(stderr, root.UsageString())
		return 2
	}
	return 0
}

type client struct {
	baseURL string
	apiKey  string
	output  string
	http    *http.Client
}

func NewRootCommand(defaults Options) *cobra.Command {
	c := &client{}
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "loglensctl",
		Short:         "Command-line client for the loglens API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.output != "json" && c.output != "table" {
				return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", c.output)
			}
			c.http = defaults.HTTPClient
			if c.http == nil {
				c.http = &http.Client{Timeout: timeout}
			}
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			return errors.New("a command is required")
		},
	}
	root.PersistentFlags().StringVar(&c.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "loglens API base URL")
	root.PersistentFlags().StringVar(&c.apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	root.PersistentFlags().DurationVar(&timeout, "timeout", durationOr(defaults.Timeout, 5*time.Minute), "HTTP timeout (queries wait for the remote job)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "json", "Output format (json, table)")

	root.AddCommand(
		c.simpleCommand("health", "Check API liveness", "/v1/health"),
		c.simpleCommand("ready", "Check API readiness", "/v1/ready"),
		c.queryCommand(),
		c.historyCommand(),
		c.dashboardCommand(),
		c.tablesCommand(),
		c.defaultQueryCommand(),
	)
	return root
}

func (c *client) simpleCommand(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := c.do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

func (c *client) queryCommand() *cobra.Command {
	var database, groupBy string
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a statement and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]string{
				"sql":      strings.Join(args, " "),
				"database": database,
				"group_by": groupBy,
			})
			if err != nil {
				return err
			}
			body, err := c.do(cmd.Context(), http.MethodPost, "/v1/query", payload)
			if err != nil {
				return err
			}
			if c.output == "json" {
				return printJSON(cmd.OutOrStdout(), body)
			}
			var result struct {
				Columns []string   `json:"columns"`
				Rows    [][]string `json:"rows"`
				Buckets []struct {
					Label string `json:"label"`
					Count int64  `json:"count"`
				} `json:"buckets"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return &requestError{err: fmt.Errorf("decode query response: %w", err)}
			}
			if groupBy != "" {
				rows := make([][]string, 0, len(result.Buckets))
				for _, bucket := range result.Buckets {
					rows = append(rows, []string{bucket.Label, fmt.Sprint(bucket.Count)})
				}
				return printTable(cmd.OutOrStdout(), []string{groupBy, "count"}, rows)
			}
			return printTable(cmd.OutOrStdout(), result.Columns, result.Rows)
		},
	}
	cmd.Flags().StringVar(&database, "database", "", "database to run against (server default when empty)")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "aggregate the result on this column")
	return cmd
}

func (c *client) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the statements executed by the API process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := c.do(cmd.Context(), http.MethodGet, "/v1/queries", nil)
			if err != nil {
				return err
			}
			if c.output == "json" {
				return printJSON(cmd.OutOrStdout(), body)
			}
			var history struct {
				Queries []struct {
					SQL        string    `json:"sql"`
					JobID      string    `json:"job_id"`
					Rows       int       `json:"rows"`
					ExecutedAt time.Time `json:"executed_at"`
				} `json:"queries"`
			}
			if err := json.Unmarshal(body, &history); err != nil {
				return &requestError{err: fmt.Errorf("decode history response: %w", err)}
			}
			rows := make([][]string, 0, len(history.Queries))
			for _, entry := range history.Queries {
				rows = append(rows, []string{entry.ExecutedAt.Format(time.DateTime), entry.JobID, fmt.Sprint(entry.Rows), entry.SQL})
			}
			return printTable(cmd.OutOrStdout(), []string{"executed_at", "job_id", "rows", "sql"}, rows)
		},
	}
}

func (c *client) dashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show ERROR and WARNING counts per message id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := c.do(cmd.Context(), http.MethodGet, "/v1/dashboard/severity", nil)
			if err != nil {
				return err
			}
			if c.output == "json" {
				return printJSON(cmd.OutOrStdout(), body)
			}
			type pie struct {
				Level   string `json:"level"`
				Buckets []struct {
					Label string `json:"label"`
					Count int64  `json:"count"`
				} `json:"buckets"`
			}
			var severity struct {
				Errors   pie `json:"errors"`
				Warnings pie `json:"warnings"`
			}
			if err := json.Unmarshal(body, &severity); err != nil {
				return &requestError{err: fmt.Errorf("decode dashboard response: %w", err)}
			}
			rows := make([][]string, 0)
			for _, p := range []pie{severity.Errors, severity.Warnings} {
				for _, bucket := range p.Buckets {
					rows = append(rows, []string{p.Level, bucket.Label, fmt.Sprint(bucket.Count)})
				}
			}
			return printTable(cmd.OutOrStdout(), []string{"level", "id", "count"}, rows)
		},
	}
}

func (c *client) tablesCommand() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List catalogued tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := c.do(cmd.Context(), http.MethodGet, withDatabase("/v1/tables", database), nil)
			if err != nil {
				return err
			}
			if c.output == "json" {
				return printJSON(cmd.OutOrStdout(), body)
			}
			var listing struct {
				Tables []struct {
					Name     string `json:"table_name"`
					Format   string `json:"format"`
					Location string `json:"location"`
				} `json:"tables"`
			}
			if err := json.Unmarshal(body, &listing); err != nil {
				return &requestError{err: fmt.Errorf("decode tables response: %w", err)}
			}
			rows := make([][]string, 0, len(listing.Tables))
			for _, table := range listing.Tables {
				rows = append(rows, []string{table.Name, table.Format, table.Location})
			}
			return printTable(cmd.OutOrStdout(), []string{"table", "format", "location"}, rows)
		},
	}
	cmd.Flags().StringVar(&database, "database", "", "database to list (server default when empty)")
	return cmd
}

func (c *client) defaultQueryCommand() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "default-query <table>",
		Short: "Print the browsing statement for a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := withDatabase("/v1/tables/"+url.PathEscape(args[0])+"/default-query", database)
			body, err := c.do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if c.output == "json" {
				return printJSON(cmd.OutOrStdout(), body)
			}
			var out struct {
				SQL string `json:"sql"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return &requestError{err: fmt.Errorf("decode default query response: %w", err)}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.SQL)
			return err
		},
	}
	cmd.Flags().StringVar(&database, "database", "", "database of the table (server default when empty)")
	return cmd
}

func (c *client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(c.apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &requestError{err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return nil, &requestError{err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))}
	}
	return responseBody, nil
}

func withDatabase(path, database string) string {
	if strings.TrimSpace(database) == "" {
		return path
	}
	return path + "?" + url.Values{"database": {database}}.Encode()
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
