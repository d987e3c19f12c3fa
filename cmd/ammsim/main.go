package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/polyamm/config"
)

func main() {
	root := &cobra.Command{
		Use:          "ammsim",
		Short:        "Prediction-market AMM pool simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "config/config.yaml", "path to config file")
	root.PersistentFlags().Bool("verbose", false, "set log level to debug")
	root.PersistentFlags().String("format", "", "log format: text|json (overrides config)")

	root.AddCommand(newSimulateCmd(), newQuoteCmd(), newModelsCmd(), newHistoryCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig lee el config de --config. Si el archivo no existe y el flag no se
// pasó explícitamente, usa config.Default().
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	if _, err := os.Stat(path); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	if format, _ := cmd.Flags().GetString("format"); format != "" {
		cfg.Log.Format = format
	}
	setupLogger(cfg.Log)
	return cfg, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
