package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/tierheap/internal/logger"
	"github.com/joshuapare/tierheap/pkg/config"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	logLevel   string
)

// out is where command output goes; tests swap it.
var out io.Writer = os.Stdout

var rootCmd = &cobra.Command{
	Use:   "tierctl",
	Short: "Inspect and exercise the tierheap allocator",
	Long: `tierctl resolves tierheap configurations, prints the size class table
and runs allocation scenarios and stress workloads against a live heap
hierarchy.

Configuration is read from --config (YAML), then overridden by the
TIERHEAP_CHUNK_SIZE, TIERHEAP_POOL_SIZE and TIERHEAP_POOL_COUNT environment
variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Log heap events to stderr at this level (debug, info, warn, error)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

func initLogging() error {
	if logLevel == "" {
		return logger.Init(logger.Options{})
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	return logger.Init(logger.Options{Enabled: true, Output: os.Stderr, JSON: jsonOut, Level: level})
}

// loadConfig resolves the configuration: defaults, then the file, then env.
func loadConfig() (config.Config, error) {
	base := config.Default()
	if configPath != "" {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("load %s: %w", configPath, err)
		}
		base = c
	}
	return config.FromSource(config.Env{Fallback: base})
}

// Helper functions for output

var printer = message.NewPrinter(language.English)

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		printer.Fprintf(out, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		printer.Fprintf(out, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
