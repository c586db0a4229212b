package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formlab/formsql/internal/config"
	"github.com/formlab/formsql/internal/logging"
	"github.com/formlab/formsql/internal/query"
	"github.com/formlab/formsql/internal/schema"
	"github.com/formlab/formsql/internal/storage"
)

var (
	flagDBPath   string
	flagLogLevel string
	flagVerbose  bool
	flagDebug    bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "formsql",
	Short: "Query form submissions with a restricted SQL dialect",
	Long: `formsql stores form submissions as schema-less JSON documents in a single
DuckDB table and compiles a restricted SQL dialect over them. Every logical
form is a partition of one physical table; user-defined fields live as
generated keys inside each row's document.

Queries look like:
  SELECT FIELD("<field-id>") FROM "<form-id>" WHERE FIELD("<field-id>") > 10`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		overrides := map[string]interface{}{
			"db-path":   flagDBPath,
			"log-level": flagLogLevel,
			"verbose":   flagVerbose,
			"debug":     flagDebug,
		}

		cfg, err := config.LoadConfigWithOverrides(overrides)
		if err != nil {
			logging.SetupFallbackLogger()
			return err
		}

		cfg.ExpandAllPaths()

		if err := logging.InitializeLogger(cfg.Logging); err != nil {
			logging.SetupFallbackLogger()
			logging.Warnf("failed to initialize logger: %v", err)
		}

		appConfig = cfg

		return nil
	},
}

func Execute() error {
	ctx := context.Background()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logging.ErrorWithErr("command failed", err)
	}

	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "Path to the submissions database")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug mode")
}

// appContext bundles what a command needs to run queries.
type appContext struct {
	repo    storage.Repository
	schemas *schema.Cache
	engine  *query.Engine
}

// openApp opens the database and wires the schema cache and query engine.
// The caller must Close the returned context.
func openApp(ctx context.Context, opts ...storage.Option) (*appContext, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	repo, err := storage.NewDuckDBRepository(appConfig.Database.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := repo.Initialize(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	schemas, err := schema.NewCache(repo, appConfig.Query.SchemaCacheSize)
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &appContext{
		repo:    repo,
		schemas: schemas,
		engine:  query.NewEngine(repo, schemas, appConfig.Query.FallbackSampleLimit),
	}, nil
}

func (a *appContext) Close() {
	if err := a.repo.Close(); err != nil {
		logging.Warnf("failed to close database: %v", err)
	}
}
