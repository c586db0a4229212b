package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/formlab/formsql/internal/config"
	"github.com/formlab/formsql/internal/logging"
	"github.com/formlab/formsql/internal/query"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive query session",
	Long: `Start an interactive session. Each line is one statement; results print
as a table. Meta commands:

  .forms            list known forms
  .fields <form>    list the fields of a form
  .sql <statement>  show the generated SQL without running it
  .refresh          drop all cached form schemas
  .quit             exit`,
	Args: cobra.NoArgs,
	RunE: runREPL,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runREPL(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	lin := liner.NewLiner()
	defer lin.Close()

	lin.SetMultiLineMode(true)
	lin.SetCtrlCAborts(true)

	historyPath := filepath.Join(config.GetConfigDir(), "repl_history")
	loadHistory(lin, historyPath)
	defer saveHistory(lin, historyPath)

	fmt.Println("formsql interactive session. Type .quit or Ctrl-D to exit.")

	for {
		line, err := lin.Prompt("formsql> ")
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println()
				return nil
			}

			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lin.AppendHistory(line)

		if strings.HasPrefix(line, ".") {
			if quit := runMetaCommand(cmd, app, line); quit {
				return nil
			}

			continue
		}

		result := app.engine.Execute(ctx, line)
		capResultRows(&result)
		printResult(result)
	}
}

// runMetaCommand handles dot commands. Returns true when the session
// should end.
func runMetaCommand(cmd *cobra.Command, app *appContext, line string) bool {
	ctx := cmd.Context()

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case ".quit", ".exit":
		return true

	case ".forms":
		forms, err := app.repo.ListForms(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false
		}

		for _, form := range forms {
			fmt.Printf("%s  %s\n", form.ID, form.Name)
		}

		fmt.Printf("%d form(s)\n", len(forms))

	case ".fields":
		if rest == "" {
			fmt.Fprintln(os.Stderr, "usage: .fields <form-id>")
			return false
		}

		fields, err := app.repo.ListFields(ctx, rest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false
		}

		for _, field := range fields {
			fmt.Printf("%s  %s (%s)\n", field.ID, field.Label, field.FieldType)
		}

		fmt.Printf("%d field(s)\n", len(fields))

	case ".sql":
		if rest == "" {
			fmt.Fprintln(os.Stderr, "usage: .sql <statement>")
			return false
		}

		sql, errs := query.Compile(rest)
		if len(errs) > 0 {
			for _, qerr := range errs {
				fmt.Fprintf(os.Stderr, "error [%s]: %s\n", qerr.Kind, qerr.Message)
			}

			return false
		}

		fmt.Println(sql)

	case ".refresh":
		app.schemas.InvalidateAll()
		fmt.Println("schema cache cleared")

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	}

	return false
}

func loadHistory(lin *liner.State, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := lin.ReadHistory(f); err != nil {
		logging.Debugf("failed to read repl history: %v", err)
	}
}

func saveHistory(lin *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := lin.WriteHistory(f); err != nil {
		logging.Debugf("failed to write repl history: %v", err)
	}
}
