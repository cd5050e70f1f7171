package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/confluence"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/jira"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/services"
)

const serviceName = "task-sync"

func main() {
	// Parse command line flags
	var (
		configPath     = flag.String("config", "", "Path to configuration file")
		mode           = flag.String("mode", "dev", "Environment mode: 'dev', 'development', 'prod', or 'production'")
		quiet          = flag.Bool("quiet", false, "Suppress banner output")
		version        = flag.Bool("version", false, "Show version information")
		help           = flag.Bool("help", false, "Show help message")
		validateConfig = flag.Bool("validate", false, "Validate configuration file and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s (build: %s)\n", serviceName, common.GetVersion(), common.GetBuild())
		os.Exit(0)
	}

	if *help {
		showHelp()
		os.Exit(0)
	}

	environment := parseMode(*mode)

	// Load configuration with priority: defaults -> TOML -> environment
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Server.Environment = environment

	if *validateConfig {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	if err := common.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := common.GetLogger()

	logger.Info().
		Str("version", common.GetVersion()).
		Str("build", common.GetBuild()).
		Str("environment", environment).
		Msg("Starting Confluence-Jira Task Sync Service")

	if !*quiet {
		common.PrintBanner(serviceName, environment, "Server", common.GetLogFilePath())
	}

	logger.Info().Msg("Initializing services...")

	history, err := services.NewHistory(&cfg.Storage)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize run history")
		os.Exit(1)
	}
	defer history.Close()

	pages := confluence.NewClient(&cfg.Confluence, cfg.Sync.MaxRetries, logger)
	issues := jira.NewClient(&cfg.Jira, cfg.Sync.MaxRetries, logger)

	logger.Info().Msg("Services initialized successfully")

	runServerMode(cfg, pages, issues, history, logger)

	logger.Info().Msg("Task sync service shutdown complete")
}

func runServerMode(cfg *common.Config, pages interfaces.PageStore, issues interfaces.IssueStore, history interfaces.History, logger arbor.ILogger) {
	webServer, err := services.NewWebServer(cfg, pages, issues, history, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create web server")
		return
	}

	ctx := context.Background()
	if err := webServer.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to start web server")
		return
	}

	logger.Info().
		Int("port", cfg.Server.Port).
		Msg("Web server started successfully")

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().Msg("Server running - press Ctrl+C to stop")

	<-sigChan
	logger.Info().Msg("Shutdown signal received")

	if err := webServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error during web server shutdown")
	}

	common.PrintShutdownBanner(serviceName)
}

func parseMode(mode string) string {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return "production"
	default:
		return "development"
	}
}

func showHelp() {
	fmt.Printf("%s - Confluence to Jira task synchronization service\n\n", serviceName)
	fmt.Println("Usage:")
	fmt.Printf("  %s [flags]\n\n", serviceName)
	fmt.Println("Flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Configuration is read from a TOML file (auto-detected next to the")
	fmt.Println("binary, or set with -config) with environment-variable overrides:")
	fmt.Println("  CONFLUENCE_BASE_URL, CONFLUENCE_USERNAME, CONFLUENCE_API_TOKEN")
	fmt.Println("  JIRA_BASE_URL, JIRA_USERNAME, JIRA_API_TOKEN")
	fmt.Println("  DATABASE_PATH, LOG_LEVEL, LOG_OUTPUT, SERVER_PORT")
}
