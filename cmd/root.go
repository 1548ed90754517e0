// Package cmd holds the gardend command line.
package cmd

import (
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smartgarden/gardend/internal/conf"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/logger"
)

// Version is stamped at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

type rootOptions struct {
	configFile string
	envFile    string
}

// NewRootCommand builds the gardend command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gardend",
		Short:         "Smart garden telemetry and alerting service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to config file (default: search for config.yaml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	root.AddCommand(newServeCommand(opts), newMigrateCommand(opts))
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		logger.NewConsoleLogger(os.Stderr, logger.LogLevelError).Error("gardend failed", logger.Error(err))
		return 1
	}
	return 0
}

// loadEnvFile loads path into the process environment without overriding
// variables already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.New(err).
			Component("cmd").
			Category(errors.CategoryConfig).
			Context("env_file", path).
			Build()
	}
	return nil
}

// setup loads settings and builds the process logger.
func setup(opts *rootOptions) (*conf.Settings, logger.Logger, error) {
	settings, err := conf.Load(opts.configFile)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(os.Stdout, settings.Log.Format, logger.ParseLevel(settings.Log.Level))
	return settings, log, nil
}
