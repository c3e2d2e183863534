package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tendant/site-content/pkg/sitecontent"
	"github.com/tendant/site-content/pkg/sitecontent/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var configFile string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "sitectl",
		Short: "Site content CLI - edit and publish the site document",
		Long: `Site content command line interface

Reads, edits and publishes the site content document and uploads media
using the same configuration as the admin server.

Configuration comes from environment variables (run "sitectl env" for the
list) or from a YAML file given with --config.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewSetCommand())
	rootCmd.AddCommand(NewPublishCommand())
	rootCmd.AddCommand(NewUploadCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewEnvCommand())

	return rootCmd
}

// NewPublisherFromFlags loads configuration and builds a publisher. The CLI
// runs with the operator's own credentials, so every call is authorized.
func NewPublisherFromFlags(ctx context.Context, cmd *cobra.Command) (*sitecontent.Publisher, error) {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	loadOpt := config.WithEnv()
	if configFile != "" {
		loadOpt = config.WithFile(configFile)
	}
	cfg, err := config.Load(loadOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded", "content_file", cfg.Content.File, "remote", cfg.Remote.Driver, "blob", cfg.Blob.Driver)

	return cfg.BuildPublisher(ctx, sitecontent.AllowAll(), logger)
}
