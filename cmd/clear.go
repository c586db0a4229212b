package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the local database",
	Long:  `Remove all forms, fields, and submissions. This action requires confirmation.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runClear(cmd, force)
	},
}

func init() {
	clearCmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")

	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, force bool) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.repo.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	if stats.TotalForms == 0 && stats.TotalSubmissions == 0 {
		fmt.Println("Database is already empty.")
		return nil
	}

	fmt.Printf("This will delete:\n")
	fmt.Printf("  • %d forms\n", stats.TotalForms)
	fmt.Printf("  • %d fields\n", stats.TotalFields)
	fmt.Printf("  • %d submissions\n", stats.TotalSubmissions)

	if !force {
		fmt.Printf("\nAre you sure you want to clear all data? This action cannot be undone.\n")
		fmt.Printf("Type 'yes' to confirm: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" {
			fmt.Println("Operation cancelled.")
			return nil
		}
	}

	if err := app.repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}

	app.schemas.InvalidateAll()

	fmt.Println("Database cleared successfully.")

	return nil
}
