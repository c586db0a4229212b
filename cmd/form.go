package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formlab/formsql/internal/errors"
)

var (
	fieldType  string
	submitData string
	submitBy   string
	listLimit  int
	listOffset int
)

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Manage forms, fields, and submissions",
}

var formCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new form",
	Args:  cobra.ExactArgs(1),
	RunE:  runFormCreate,
}

var formListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all forms",
	Args:  cobra.NoArgs,
	RunE:  runFormList,
}

var formFieldCmd = &cobra.Command{
	Use:   "field <form-id> <label>",
	Short: "Add a field to a form",
	Long: `Add a field to a form. The generated field ID is the document key
submission values are stored under; queries reference fields by that ID.`,
	Args: cobra.ExactArgs(2),
	RunE: runFormField,
}

var formFieldsCmd = &cobra.Command{
	Use:   "fields <form-id>",
	Short: "List the fields of a form",
	Args:  cobra.ExactArgs(1),
	RunE:  runFormFields,
}

var formRenameFieldCmd = &cobra.Command{
	Use:   "rename-field <field-id> <label>",
	Short: "Change a field's display label",
	Args:  cobra.ExactArgs(2),
	RunE:  runFormRenameField,
}

var formDeleteFieldCmd = &cobra.Command{
	Use:   "delete-field <field-id>",
	Short: "Remove a field definition",
	Long: `Remove a field definition. Existing submission documents keep their
stored values; queries can no longer reference the field.`,
	Args: cobra.ExactArgs(1),
	RunE: runFormDeleteField,
}

var formSubmitCmd = &cobra.Command{
	Use:   "submit <form-id>",
	Short: "Record a submission",
	Long: `Record a submission. --data takes a JSON object keyed by field ID:

  formsql form submit <form-id> --data '{"<field-id>": 42}' --by alice`,
	Args: cobra.ExactArgs(1),
	RunE: runFormSubmit,
}

var formSubmissionsCmd = &cobra.Command{
	Use:   "submissions <form-id>",
	Short: "List submissions of a form",
	Args:  cobra.ExactArgs(1),
	RunE:  runFormSubmissions,
}

func init() {
	formFieldCmd.Flags().StringVar(&fieldType, "type", "text", "Field type: text, number, date")
	formSubmitCmd.Flags().StringVar(&submitData, "data", "", "Submission document as a JSON object keyed by field ID")
	formSubmitCmd.Flags().StringVar(&submitBy, "by", "", "Submitter identity")
	formSubmissionsCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of submissions to list")
	formSubmissionsCmd.Flags().IntVar(&listOffset, "offset", 0, "Number of submissions to skip")

	formCmd.AddCommand(formCreateCmd)
	formCmd.AddCommand(formListCmd)
	formCmd.AddCommand(formFieldCmd)
	formCmd.AddCommand(formFieldsCmd)
	formCmd.AddCommand(formRenameFieldCmd)
	formCmd.AddCommand(formDeleteFieldCmd)
	formCmd.AddCommand(formSubmitCmd)
	formCmd.AddCommand(formSubmissionsCmd)

	rootCmd.AddCommand(formCmd)
}

func runFormCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	form, err := app.repo.CreateForm(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("created form %s (%s)\n", form.ID, form.Name)

	return nil
}

func runFormList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	forms, err := app.repo.ListForms(ctx)
	if err != nil {
		return err
	}

	if len(forms) == 0 {
		fmt.Println("no forms yet; create one with: formsql form create <name>")
		return nil
	}

	for _, form := range forms {
		fmt.Printf("%s  %s  %s\n", form.ID, form.CreatedAt.Format("2006-01-02"), form.Name)
	}

	return nil
}

func runFormField(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	formID, label := args[0], args[1]

	field, err := app.repo.CreateField(ctx, formID, label, fieldType)
	if err != nil {
		return err
	}

	// Adding a field changes what validates against this form.
	app.schemas.Invalidate(formID)

	fmt.Printf("created field %s (%s) on form %s\n", field.ID, field.Label, formID)

	return nil
}

func runFormFields(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	fields, err := app.repo.ListFields(ctx, args[0])
	if err != nil {
		return err
	}

	for _, field := range fields {
		fmt.Printf("%s  %s (%s)\n", field.ID, field.Label, field.FieldType)
	}

	fmt.Printf("%d field(s)\n", len(fields))

	return nil
}

func runFormRenameField(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	fieldID, label := args[0], args[1]

	if err := app.repo.UpdateFieldLabel(ctx, fieldID, label); err != nil {
		return err
	}

	// The label feeds result-column headers, so cached schemas are stale.
	app.schemas.InvalidateAll()

	fmt.Printf("renamed field %s to %q\n", fieldID, label)

	return nil
}

func runFormDeleteField(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.repo.DeleteField(ctx, args[0]); err != nil {
		return err
	}

	app.schemas.InvalidateAll()

	fmt.Printf("deleted field %s\n", args[0])

	return nil
}

func runFormSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if submitData == "" {
		return errors.New(errors.ErrTypeValidation, "--data is required").
			WithSuggestion("Pass the document as JSON: --data '{\"<field-id>\": 42}'")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(submitData), &data); err != nil {
		return errors.Wrap(err, errors.ErrTypeValidation, "--data must be a JSON object keyed by field ID")
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	sub, err := app.repo.CreateSubmission(ctx, args[0], submitBy, data)
	if err != nil {
		return err
	}

	fmt.Printf("recorded submission %s\n", sub.ID)

	return nil
}

func runFormSubmissions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	subs, err := app.repo.ListSubmissions(ctx, args[0], listLimit, listOffset)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		doc, err := json.Marshal(sub.Data)
		if err != nil {
			doc = []byte("{}")
		}

		fmt.Printf("%s  %s  %s  %s\n", sub.ID, sub.CreatedAt.Format("2006-01-02 15:04"), sub.CreatedBy, doc)
	}

	fmt.Printf("%d submission(s)\n", len(subs))

	return nil
}
