// Package cmd provides the command-line interface of tdsim.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/testdata/config"
	"github.com/sarchlab/testdata/source"
)

var (
	cfgFile  string
	envFiles []string
	logLevel string

	// cfg is loaded before any subcommand runs.
	cfg *config.File
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tdsim",
	Short: "tdsim generates test data for the variables of an address space.",
	Long: `tdsim regenerates the variables of an address space from a ` +
		`seeded test-data source, on demand or once per cycle, and can ` +
		`record every generation to SQLite and serve a web monitor.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"YAML config file; the built-in address space is used if empty")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil,
		".env files to load; ./.env is loaded if present")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnv(envFiles...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	f := config.Default()
	if cfgFile != "" {
		var err error

		f, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
	}

	if err := f.ApplyEnv(); err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		f.LogLevel = logLevel
	}

	level, err := f.SlogLevel()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(),
		&slog.HandlerOptions{Level: level})))

	cfg = f

	return nil
}

func newSource(f *config.File) *source.TestDataSystem {
	return source.NewTestDataSystem(f.Seed).WithArrayLength(f.ArrayLength)
}
