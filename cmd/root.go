package cmd

import (
	"fmt"
	"os"
	"tablature/config"
	"tablature/database"
	"tablature/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile           string
	dbPath            string // Bound to --dbpath flag
	appLogPathFlag    string
	accessLogPathFlag string
	logLevelFlag      string
)

var rootCmd = &cobra.Command{
	Use:   "tablature",
	Short: "Serves paginated, searchable HTML tables backed by SQLite",
	Long: `Tablature renders configured SQLite tables through a client-side Table widget.

It serves the page that hosts the widget, the init script that constructs it
(with localized labels), and the JSON endpoint the widget pages, searches,
filters and sorts through. The table subcommands inspect the same tables
and load JSON data into them from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cfgFile, appLogPathFlag, accessLogPathFlag, logLevelFlag); err != nil {
			return fmt.Errorf("failed to initialize config in PersistentPreRunE: %w", err)
		}

		finalDBPath := resolveDBPath(dbPath, config.AppConfig.Database.Path)
		logger.Debug("PersistentPreRunE: Attempting to InitDB with final path: '%s'", finalDBPath)
		if err := database.InitDB(finalDBPath); err != nil {
			return fmt.Errorf("failed to initialize database at %s: %w", finalDBPath, err)
		}

		isSuppressedCmd := cmd.Name() == "completion" ||
			cmd.Name() == cobra.ShellCompRequestCmd ||
			cmd.Name() == cobra.ShellCompNoDescRequestCmd
		if !isSuppressedCmd {
			logger.Info("Database initialized at: %s (from rootCmd PersistentPreRunE)", finalDBPath)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := database.CloseDB(); err != nil {
			logger.Error("PersistentPostRun: Error closing database: %v", err)
		}
	},
}

// resolveDBPath prefers the --dbpath flag over the configured path, then falls back to the CWD.
func resolveDBPath(flagPath, configPath string) string {
	finalDBPath := flagPath
	if finalDBPath == "" {
		finalDBPath = configPath
	}
	if finalDBPath == "" {
		logger.Error("PersistentPreRunE: Database path is empty after checking flag and config! Falling back to 'tablature.db' in CWD.")
		return "tablature.db"
	}
	expandedPath, err := config.ExpandTilde(finalDBPath)
	if err != nil {
		logger.Error("Error expanding tilde in database path '%s': %v. Using original.", finalDBPath, err)
		return finalDBPath
	}
	return expandedPath
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/tablature/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "dbpath", "", "path to SQLite database file (overrides config/default)")
	rootCmd.PersistentFlags().StringVar(&appLogPathFlag, "app-log", "", "path for the application log file (overrides config/default)")
	rootCmd.PersistentFlags().StringVar(&accessLogPathFlag, "access-log", "", "path for the HTTP access log file (overrides config/default)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: DEBUG, INFO, ERROR (overrides config/default)")
}
