// Package main implements the objection CLI - the build tool and session
// server for runtime-driven UIs.
//
// This file is the entry point and command registration hub; command
// implementations live in their own files:
//
//   - main.go      - rootCmd, global flags, logger setup
//   - cmd_build.go - buildCmd, the collect/generate/bundle pipeline
//   - cmd_run.go   - runCmd, the dev server with watch and reload
//   - pipeline.go  - the shared build pipeline
//   - writer.go    - artifact writing helpers
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radical-ui/objection/internal/config"
	"github.com/radical-ui/objection/internal/logging"
)

var (
	// Global flags
	configPath   string
	runtimeURL   string
	engineName   string
	engineURL    string
	platform     string
	bindingsPath string
	outDir       string
	cacheDir     string
	verbose      bool

	// Loaded configuration, available to every command after PreRun.
	cfg *config.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "objection",
	Short: "objection - build tool and session server for runtime-driven UIs",
	Long: `objection turns a typed UI runtime into three artifacts: strongly-typed
engine bindings, a bundled client script, and a running session server that
mediates between the engine and many live clients.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// applyFlagOverrides layers explicitly-set flags over the loaded config.
func applyFlagOverrides() {
	flags := rootCmd.PersistentFlags()

	if flags.Changed("runtime") {
		cfg.Runtime = runtimeURL
	}
	if flags.Changed("engine") {
		cfg.Engine = engineName
	}
	if flags.Changed("engine-url") {
		cfg.EngineURL = engineURL
	}
	if flags.Changed("platform") {
		cfg.Platform = platform
	}
	if flags.Changed("bindings-path") {
		cfg.BindingsPath = bindingsPath
	}
	if flags.Changed("out-dir") {
		cfg.OutDir = outDir
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = cacheDir
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		applyFlagOverrides()

		if _, err := logging.Initialize(logging.Options{
			Verbose: verbose || cfg.Logging.Verbose,
			FileDir: cfg.Logging.FileDir,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		logging.Sync()
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "objection.yaml", "path to the configuration file")
	flags.StringVar(&runtimeURL, "runtime", "", "the runtime entry url")
	flags.StringVar(&engineName, "engine", "", "the engine to generate bindings for (rust)")
	flags.StringVar(&engineURL, "engine-url", "", "the url the engine is running at (http or websocket)")
	flags.StringVar(&platform, "platform", "", "the platform to build for (web)")
	flags.StringVar(&bindingsPath, "bindings-path", "", "where generated engine bindings are written")
	flags.StringVar(&outDir, "out-dir", "", "where build artifacts are written")
	flags.StringVar(&cacheDir, "cache-dir", "", "the module cache directory")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
