package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartridge/dinosweep/internal/config"
	"github.com/cartridge/dinosweep/internal/storage"
)

var (
	cfg        *config.Config
	logger     zerolog.Logger
	configFile string
	envFile    string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "dinosweep",
	Short: "Threshold reflex controller and grid search for the runner game",
	Long: `dinosweep plays the runner game with a threshold reflex policy and grid-searches
the policy parameters for the configuration that survives the longest.

Settings come from flags, DINO_* environment variables (a .env file is read
first) and an optional config file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(cfg.Level())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading DINO_* variables")
	if err := config.RegisterFlags(rootCmd.PersistentFlags(), v); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(sweepCmd, reportCmd)
}

// openStore opens the configured result store, or returns nil when persistence is off.
func openStore(ctx context.Context) (storage.ResultStore, error) {
	if cfg.DBDriver == "" {
		return nil, nil
	}
	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	return store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
