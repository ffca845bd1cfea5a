package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/emotune/internal/config"
	"github.com/ewilliams-labs/emotune/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var (
		configPath string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "emotune",
		Short:         "Emotion-driven music recommendation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			logging.Init(logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Caller: cfg.Logging.Caller,
			})
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	current := func() *config.Config { return cfg }
	serveCmd := serveCommand(current)
	root.AddCommand(serveCmd, reindexCommand(current))
	// Running the binary without a subcommand starts the server.
	root.RunE = serveCmd.RunE

	if err := root.Execute(); err != nil {
		logging.Error().Err(err).Msg("emotune exited with error")
		os.Exit(1)
	}
}
