package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kcearns/landing-server/cmd/config"
	"github.com/kcearns/landing-server/cmd/logger"
	"github.com/kcearns/landing-server/cmd/metrics"
	"github.com/kcearns/landing-server/cmd/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	started := time.Now()

	// Initialize a basic logger for early startup logging
	log := logger.NewFromConfigStruct("info", "json", "stdout")

	// Default configuration path
	configPath := "config.toml"
	loadedViaEnv := false

	// Check for config file location from environment variable
	if envConfigPath := os.Getenv("LANDING_CONFIG"); envConfigPath != "" {
		configPath = envConfigPath
		loadedViaEnv = true
	}

	// Parse command line arguments
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--config", "-c":
			if len(os.Args) > 2 {
				configPath = os.Args[2]
				loadedViaEnv = false
			}
		case "--help", "-h":
			printUsage()
			return 0
		case "--version", "-v":
			fmt.Println(logger.Version)
			return 0
		default:
			configPath = os.Args[1]
			loadedViaEnv = false
		}
	}

	cfg, err := loadConfig(log, configPath, loadedViaEnv)
	if err != nil {
		log.LogError("config loading", err, "path", configPath)
		return 1
	}

	// Reinitialize the global logger with configuration settings
	log = logger.Init(&logger.Config{
		Level:  logger.LogLevel(cfg.Logger.Level),
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	defer log.Close()

	metricsClient, err := metrics.NewClient(&cfg.Metrics)
	if err != nil {
		log.LogError("metrics client creation", err)
		return 1
	}
	server.RecordBuildInfo(metricsClient, started)

	srv, err := server.New(cfg, log, metricsClient)
	if err != nil {
		log.LogError("server creation", err)
		return 1
	}

	log.LogStartup(cfg.GetListenAddr(), configPath)
	if cfg.Metrics.Enabled {
		log.Info("metrics endpoint enabled", "addr", cfg.GetMetricsAddr(), "path", "/metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.LogError("HTTP server", err, "addr", cfg.GetListenAddr())
		return 1
	}

	log.Info("landing server stopped")
	return 0
}

// loadConfig reads configPath, falling back to the defaults when the file is
// missing. Environment overrides are validated on both paths.
func loadConfig(log *logger.Logger, configPath string, loadedViaEnv bool) (*config.Config, error) {
	cfg, found, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if found {
		log.LogConfig(configPath, loadedViaEnv)
	} else {
		// A missing file is normal in a container
		log.Info("config file not found, using defaults", "path", configPath)
	}
	return cfg, nil
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  landing-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config, -c <file>  Load TOML or YAML config file (default: config.toml)")
	fmt.Println("  --version, -v        Print the version and exit")
	fmt.Println("  --help, -h           Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  LANDING_CONFIG  Path to the config file (default: config.toml)")
	fmt.Println("  PORT            Listen port, overrides [server] port (default: 3000)")
	fmt.Println("  LANDING_HOST    Bind host, overrides [server] host (default: all interfaces)")
	fmt.Println()
	fmt.Println("Routes:")
	fmt.Println("  GET /            Landing page")
	fmt.Println("  GET /api/health  Liveness status, always {\"status\":\"ok\"}")
}
