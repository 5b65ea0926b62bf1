package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/piwi3910/amber/pkg/project"
	"github.com/piwi3910/amber/pkg/telemetry"
)

var (
	// Global flags
	projectDir string
	configPath string
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "amber",
		Short: "Amber - persistent resource memoization engine",
		Long: `Amber caches the results of named computations durably on disk.

The amber CLI inspects a project directory without going through the
library's compute path:
  - Aggregate or per-resource status
  - Resource identifiers filtered by status
  - Captured run logs and error traces`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", ".", "project directory")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newFindCommand())
	rootCmd.AddCommand(newLogCommand())
	rootCmd.AddCommand(newErrorCommand())

	return rootCmd
}

// cliConfig is the optional YAML configuration for the CLI.
type cliConfig struct {
	Telemetry *telemetry.Config `yaml:"telemetry"`
}

// loadConfig reads the config file if one was given.
func loadConfig() (*cliConfig, error) {
	cfg := &cliConfig{}
	if configPath == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Telemetry != nil {
		if err := cfg.Telemetry.Validate(); err != nil {
			return nil, fmt.Errorf("invalid telemetry config: %w", err)
		}
	}
	return cfg, nil
}

// openProject opens the project directory for inspection, attaching
// every collection found on disk.
func openProject() (*project.Project, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := telemetry.DefaultConfig().Logging
	if cfg.Telemetry != nil {
		logCfg = cfg.Telemetry.Logging
	}
	logger, err := telemetry.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}

	proj, err := project.New(project.Options{
		BaseDir: projectDir,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(projectDir)
	if err != nil {
		_ = proj.Close()
		return nil, fmt.Errorf("failed to read project directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := proj.Attach(e.Name()); err != nil {
			_ = proj.Close()
			return nil, err
		}
	}
	return proj, nil
}
