package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display database statistics",
	Long:  `Show statistics about the submissions database including form, field, and submission counts and database size.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
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

	fmt.Printf("Database Statistics\n")
	fmt.Printf("==================\n\n")

	fmt.Printf("Total Forms: %d\n", stats.TotalForms)
	fmt.Printf("Total Fields: %d\n", stats.TotalFields)
	fmt.Printf("Total Submissions: %d\n", stats.TotalSubmissions)
	fmt.Printf("Database Size: %.2f MB\n", stats.DatabaseSizeMB)

	if !stats.LastSubmission.IsZero() {
		fmt.Printf("Last Submission: %s\n", stats.LastSubmission.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("Last Submission: Never\n")
	}

	if len(stats.FormBreakdown) > 0 {
		fmt.Printf("\nSubmissions per Form:\n")

		type formCount struct {
			name  string
			count int
		}

		var forms []formCount
		for name, count := range stats.FormBreakdown {
			forms = append(forms, formCount{name, count})
		}

		sort.Slice(forms, func(i, j int) bool {
			return forms[i].count > forms[j].count
		})

		for _, form := range forms {
			fmt.Printf("  %-30s %d\n", form.name, form.count)
		}
	}

	return nil
}
