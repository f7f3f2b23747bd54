// Package main is the entry point for the publink CLI.
//
// publink can be used as a library (SDK) or as a standalone binary with YAML
// configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	publink serve -c config.yaml     # Start the link checking service
//	publink check notes.md           # Check the project links in a file
//	publink validate -c config.yaml  # Validate configuration
//	publink version                  # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "publink",
	Short: "Warn when project links are not publicly viewable",
	Long: `publink finds project links in text and checks that each one is
publicly reachable, warning about the ones that are not.

Quick start:
  1. Check a document: publink check notes.md
  2. Or run the service: publink serve -c publink.yaml
  3. Open http://localhost:8080 and paste a project link

Example config:
  port: 8080
  debounce_interval: 1s
  throttle_interval: 3s
  url_patterns:
    - https://easel.com/projects/`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this publink binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "publink %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to a rotating file instead of stderr")

	rootCmd.AddCommand(versionCmd)
}
