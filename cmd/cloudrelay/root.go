package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cloudrelay/internal/config"
	"github.com/custodia-labs/cloudrelay/internal/logging"
)

// globals holds the persistent flags shared by every subcommand
type globals struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "cloudrelay",
		Short: "Relay client uploads to connected cloud storage",
		Long: `cloudrelay receives files on personal upload URLs and relays them to the
owner's cloud storage provider (Google Drive, Amazon S3).

Run "cloudrelay serve" for the API and worker, "cloudrelay migrate" to apply
the database schema.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", config.DefaultPath, "path to the YAML config file")

	root.AddCommand(newServeCmd(g))
	root.AddCommand(newMigrateCmd(g))
	root.AddCommand(newUserCmd(g))
	root.AddCommand(newHealthCmd(g))
	return root
}

// load reads the config and installs the default logger.
func (g *globals) load() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

// bootstrap loads the config and connects the full service graph.
// The returned cleanup closes everything bootstrap opened.
func (g *globals) bootstrap(ctx context.Context) (*app, func(), error) {
	cfg, logger, closer, err := g.load()
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		_ = closer.Close()
	}, nil
}
