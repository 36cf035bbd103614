// Package main is the CLI entry point for the Racing+ client coordinator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/racingplus/client/internal/config"
	"github.com/racingplus/client/internal/coordinator"
	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "racingplus",
	Short: "Racing+ client coordinator",
	Long: `racingplus runs the Racing+ client: it opens the window through the UI
shell, supervises the Steam, log watcher and game launcher workers, registers
the global hotkeys and keeps a single instance running.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCoordinator,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running instance and saved settings",
	RunE:  runStatus,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect or change saved settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the settings file",
	RunE:  runSettingsShow,
}

var settingsControllerCmd = &cobra.Command{
	Use:   "set-controller <true|false>",
	Short: "Choose controller or keyboard variants of the game hotkey helpers",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetController,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath  string
	devMode     bool
	waitForLock bool
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to racingplus.toml")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Run from the source tree (development mode)")
	rootCmd.Flags().BoolVar(&waitForLock, "wait-for-lock", false, "Wait for a previous instance to exit instead of focusing it")
	_ = rootCmd.Flags().MarkHidden("wait-for-lock")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsControllerCmd)

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	if devMode {
		if err := os.Setenv(infra.DevEnvVar, "1"); err != nil {
			return nil, err
		}
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := infra.NewLogger(infra.LogOptions{
		Development: cfg.IsDev(),
		FilePath:    cfg.Paths.LogFile,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	c, err := coordinator.New(coordinator.Options{
		Config:  cfg,
		Version: Version,
		Args:    os.Args[1:],
	}, logger)
	if err != nil {
		return err
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	err = c.Run(ctx, waitForLock)
	if errors.Is(err, coordinator.ErrAnotherInstance) {
		logger.Info("focused the running instance, exiting")
		return nil
	}
	if err != nil {
		logger.Error("coordinator failed", zap.Error(err))
	}
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileInstanceRegistry(cfg.Paths.RegistryFile)
	entry, err := registry.Get()
	if err != nil {
		fmt.Printf("Warning: could not read instance record: %v\n", err)
	}

	rows := append([][]string{{"Mode", cfg.Launch.Mode.String()}}, instanceRows(entry, pm)...)
	fmt.Println(renderTable([]string{"Field", "Value"}, rows, nil))

	var workers [][]string
	for _, kind := range domain.AllWorkerKinds {
		w := cfg.Workers.For(kind)
		workers = append(workers, []string{string(kind), w.Command, w.Policy})
	}
	fmt.Println(renderTable([]string{"Worker", "Command", "Policy"}, workers, nil))

	settings, err := infra.NewFileSettingsStore(cfg.Paths.SettingsFile).Load()
	if err != nil {
		fmt.Printf("Warning: could not read settings: %v\n", err)
		return nil
	}
	fmt.Println(renderTable([]string{"Setting", "Value"}, settingsRows(cfg.Paths.SettingsFile, settings), nil))
	return nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	settings, err := infra.NewFileSettingsStore(cfg.Paths.SettingsFile).Load()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runSetController(cmd *cobra.Command, args []string) error {
	controller, err := strconv.ParseBool(args[0])
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, err = infra.NewFileSettingsStore(cfg.Paths.SettingsFile).Update(func(s *domain.Settings) error {
		s.SetController(controller)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("controllerPreference set to %t\n", controller)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		data, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(data))
	} else {
		fmt.Printf("racingplus %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
