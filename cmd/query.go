package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/formlab/formsql/internal/errors"
	"github.com/formlab/formsql/internal/query"
	"github.com/formlab/formsql/internal/storage"
)

var (
	queryJSON     bool
	queryFallback bool
	queryShowSQL  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <statement>",
	Short: "Run a single query against the submissions database",
	Long: `Run one SELECT or UPDATE statement and print the result.

Examples:
  formsql query 'SELECT * FROM "2f0c8f6e-9a31-4c6e-8b1a-3d8f2a61c905"'
  formsql query 'SELECT COUNT(*), AVG(FIELD("<field-id>")) FROM "<form-id>"'
  formsql query --json 'SELECT submission_id, created_at FROM "<form-id>" WHERE FIELD("<field-id>") = 42'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Emit the result as JSON")
	queryCmd.Flags().BoolVar(&queryFallback, "fallback", false, "Force the client-side evaluation path")
	queryCmd.Flags().BoolVar(&queryShowSQL, "show-sql", false, "Print the generated SQL before executing")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	statement := strings.TrimSpace(args[0])
	if statement == "" {
		return errors.New(errors.ErrTypeValidation, "statement cannot be empty")
	}

	var opts []storage.Option
	if queryFallback {
		opts = append(opts, storage.WithoutRawQuery())
	}

	app, err := openApp(ctx, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	if queryShowSQL {
		printGeneratedSQL(statement)
	}

	var sp *spinner.Spinner
	if !queryJSON {
		sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		sp.Suffix = " running query..."
		sp.Start()
	}

	result := app.engine.Execute(ctx, statement)

	if sp != nil {
		sp.Stop()
	}

	capResultRows(&result)

	if queryJSON {
		return printResultJSON(result)
	}

	printResult(result)

	if !result.OK() {
		return errors.New(errors.ErrTypeExecution, "query failed")
	}

	return nil
}

// capResultRows truncates oversized results to the configured display cap.
func capResultRows(result *query.Result) {
	max := appConfig.Query.MaxResultRows
	if max <= 0 || len(result.Rows) <= max {
		return
	}

	result.Rows = result.Rows[:max]

	truncated := fmt.Sprintf("output truncated to %d row(s)", max)
	if result.Note != "" {
		result.Note += "; " + truncated
	} else {
		result.Note = truncated
	}
}

func printGeneratedSQL(statement string) {
	sql, compileErrs := query.Compile(statement)
	if len(compileErrs) > 0 {
		return
	}

	fmt.Printf("-- %s\n", sql)
}

func printResultJSON(result query.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func printResult(result query.Result) {
	for _, qerr := range result.Errors {
		fmt.Fprintf(os.Stderr, "error [%s]: %s\n", qerr.Kind, qerr.Message)
	}

	if !result.OK() {
		return
	}

	if result.RowsAffected > 0 && len(result.Columns) == 0 {
		fmt.Printf("%d row(s) updated\n", result.RowsAffected)
		return
	}

	printTable(result.Columns, result.Rows)
	fmt.Printf("\n%d row(s)\n", len(result.Rows))

	if result.Note != "" {
		fmt.Printf("note: %s\n", result.Note)
	}
}

func printTable(columns []string, rows [][]any) {
	if len(columns) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(columns, "\t"))

	underline := make([]string, len(columns))
	for i, col := range columns {
		underline[i] = strings.Repeat("-", len(col))
	}

	fmt.Fprintln(w, strings.Join(underline, "\t"))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = formatCell(cell)
		}

		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	w.Flush()
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}

	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
