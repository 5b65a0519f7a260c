package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/trip-book/internal/metrics"
	"github.com/kozaktomas/trip-book/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the trip-book HTTP API.
The API generates book plans from posted manifests, stores stop overrides
and user picks, and exposes Prometheus metrics on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("photos-root", "", "Root for relative photo paths; enables quality analysis")
	serveCmd.Flags().String("allowed-origins", "", "Comma-separated CORS origins besides localhost")
}

// resolveServeOptions resolves host, port and origins from flags and environment variables.
func resolveServeOptions(cmd *cobra.Command) web.Options {
	opts := web.Options{
		Port:           mustGetInt(cmd, "port"),
		Host:           mustGetString(cmd, "host"),
		AllowedOrigins: mustGetString(cmd, "allowed-origins"),
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &opts.Port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		opts.Host = envHost
	}
	if opts.AllowedOrigins == "" {
		opts.AllowedOrigins = os.Getenv("WEB_ALLOWED_ORIGINS")
	}
	return opts
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	rec := metrics.New()
	gen, err := env.generator(mustGetString(cmd, "photos-root"), rec)
	if err != nil {
		return err
	}

	opts := resolveServeOptions(cmd)
	server := web.NewServer(opts, gen, env.store, rec, env.log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			env.log.WithError(err).Error("error during shutdown")
		}
	}()

	fmt.Printf("Starting trip-book API on http://%s:%d\n", opts.Host, opts.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
