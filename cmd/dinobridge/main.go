package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/cartridge/dinosweep/internal/bridge"
	"github.com/cartridge/dinosweep/internal/env"
)

var rootCmd = &cobra.Command{
	Use:   "dinobridge",
	Short: "Serve the built-in runner game simulator over gRPC",
	Long: `dinobridge exposes a simulated runner game through the dino.v1.Environment
service so dinosweep can be exercised without a browser.`,
	SilenceUsage: true,
	RunE:         runBridge,
}

func init() {
	defaults := env.DefaultSimConfig()
	rootCmd.Flags().String("listen", ":50061", "gRPC listen address")
	rootCmd.Flags().Int64("seed", defaults.Seed, "Simulator random seed")
	rootCmd.Flags().Int("tick-limit", defaults.TickLimit, "Ticks after which an episode is ended")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")

	viper.BindPFlags(rootCmd.Flags())
	viper.SetEnvPrefix("DINO_BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runBridge(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "dinobridge").Logger().Level(level)

	simCfg := env.DefaultSimConfig()
	simCfg.Seed = viper.GetInt64("seed")
	simCfg.TickLimit = viper.GetInt("tick-limit")
	sim := env.NewSim(simCfg)
	defer sim.Close()

	server := grpc.NewServer(
		grpc.UnaryInterceptor(bridge.LoggingInterceptor(logger)),
	)
	bridge.Register(server, bridge.NewServer(sim))

	// Enable reflection for development
	reflection.Register(server)

	addr := viper.GetString("listen")
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", lis.Addr().String()).Int64("seed", simCfg.Seed).Msg("Environment bridge listening")
		serveErr <- server.Serve(lis)
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-c:
	}

	logger.Info().Msg("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		logger.Warn().Msg("Shutdown timeout exceeded, forcing stop")
		server.Stop()
	case <-stopped:
		logger.Info().Msg("Server stopped gracefully")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
