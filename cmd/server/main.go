package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zep-us/callbridge/internal/app"
	"github.com/zep-us/callbridge/internal/config"
	"github.com/zep-us/callbridge/pkg/logger"
)

// newRootCommand returns the server command; run is invoked with the loaded configuration
func newRootCommand(run func(*config.Config) error) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "callbridge",
		Short:         "Tracked, cancellable upstream calls over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if configPath != "" {
				cfg, err = config.LoadFile(configPath)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file (default: config.toml in . or ./config)")
	return cmd
}

func main() {
	root := newRootCommand(func(cfg *config.Config) error {
		logger.Info("callbridge starting...")
		return app.NewApp(cfg).Run()
	})
	if err := root.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
