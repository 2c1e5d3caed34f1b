// Command taskd runs a minimal MCP server exposing the task lifecycle
// subsystem over stdio: a demo long-running tool backed by the workflow
// engine, plus the tasks/* method family routed through taskrouter.Router.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/internal/taskconfig"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "taskd",
	Short:   "MCP task lifecycle server",
	Long:    "taskd runs an MCP server demonstrating the task store, workflow engine, and tasks/* router over stdio.",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stdio MCP server",
	RunE:  runServe,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the resolved task store / security configuration and exit",
	RunE:  runInspect,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := taskconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	srv, err := NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	defer srv.Close(context.Background())

	logger.Info("starting taskd MCP server on stdio transport")
	return srv.Run(ctx)
}

func runInspect(_ *cobra.Command, _ []string) error {
	cfg, err := taskconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	fmt.Printf("taskstore:\n  maxVariableSizeBytes: %d\n  defaultTtlMs: %d\n  maxTtlMs: %d\n",
		cfg.TaskStore.MaxVariableSizeBytes, cfg.TaskStore.DefaultTTLMs, cfg.TaskStore.MaxTTLMs)
	fmt.Printf("tasksecurity:\n  maxTasksPerOwner: %d\n  allowAnonymous: %v\n  defaultOwnerId: %s\n",
		cfg.TaskSecurity.MaxTasksPerOwner, cfg.TaskSecurity.AllowAnonymous, cfg.TaskSecurity.DefaultOwnerID)
	return nil
}
