package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formlab/formsql/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display or save the active configuration",
	Long: `Show the active configuration after merging defaults, the configuration
file, environment variables, and command-line flags. With --save, write the
active configuration to the configuration file.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().Bool("save", false, "Write the active configuration to the config file")

	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	if appConfig == nil {
		return fmt.Errorf("configuration not loaded")
	}

	save, _ := cmd.Flags().GetBool("save")
	if save {
		if err := config.SaveConfig(appConfig); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}

		fmt.Println("Configuration saved.")

		return nil
	}

	fmt.Printf("Active Configuration\n")
	fmt.Printf("====================\n\n")

	fmt.Printf("Database:\n")
	fmt.Printf("  Path: %s\n", appConfig.Database.Path)
	fmt.Printf("  Max Connections: %d\n", appConfig.Database.MaxConnections)
	fmt.Printf("  Query Timeout: %s\n", appConfig.Database.QueryTimeout)

	fmt.Printf("\nQuery:\n")
	fmt.Printf("  Fallback Sample Limit: %d\n", appConfig.Query.FallbackSampleLimit)
	fmt.Printf("  Schema Cache Size: %d\n", appConfig.Query.SchemaCacheSize)
	fmt.Printf("  Max Result Rows: %d\n", appConfig.Query.MaxResultRows)

	fmt.Printf("\nLogging:\n")
	fmt.Printf("  Level: %s\n", appConfig.Logging.Level)
	fmt.Printf("  Format: %s\n", appConfig.Logging.Format)
	fmt.Printf("  Output: %s\n", appConfig.Logging.Output)

	fmt.Printf("\nDebug:\n")
	fmt.Printf("  Enabled: %t\n", appConfig.Debug.Enabled)
	fmt.Printf("  Verbose: %t\n", appConfig.Debug.Verbose)

	fmt.Printf("\nConfig directory: %s\n", config.GetConfigDir())

	return nil
}
