package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/config"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/logging"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

var (
	cfgFile string

	// v holds defaults, env bindings, the config file and flag overrides.
	v = config.NewViper()

	appConfig config.AppConfig
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Competitive intelligence watchdog",
	Long: "Watchdog stores captures of competitor web assets, detects meaningful changes, " +
		"classifies them and routes alerts to Slack or stdout.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file (default ./watchdog.yaml)")
	flags.String("db", "", "Path to SQLite database file (overrides WATCHDOG_DB env var)")
	flags.String("log-level", v.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-format", v.GetString("log.format"), "Log format (json, console)")
	flags.String("competitors", v.GetString("competitors.file"), "Path to competitors.yaml")

	bindFlag("database.path", "db")
	bindFlag("log.level", "log-level")
	bindFlag("log.format", "log-format")
	bindFlag("competitors.file", "competitors")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

func bindFlag(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// initConfig reads the config file, resolves the runtime configuration and
// builds the logger. A missing default config file is not an error.
func initConfig() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("watchdog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "watchdog"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	l, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	appConfig, logger = cfg, l
	return nil
}

// resolveDBPath returns the database path using --db or database.path
// (highest priority), then WATCHDOG_DB env var, then the default XDG path.
func resolveDBPath() (string, error) {
	if p := appConfig.DatabasePath; p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

func openStore() (*store.Store, error) {
	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database opened", zap.String("path", dbPath))
	return st, nil
}
