package main

import (
	"fmt"

	"github.com/jpalmerr/publink/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a publink configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  publink validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	throttle := "per session (memory)"
	if cfg.Redis != nil {
		throttle = "shared (redis " + cfg.Redis.Addr + ")"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:              %d\n", cfg.Port)
	fmt.Fprintf(out, "  Debounce interval: %s\n", cfg.DebounceInterval.Duration())
	fmt.Fprintf(out, "  Throttle interval: %s\n", cfg.ThrottleInterval.Duration())
	fmt.Fprintf(out, "  Throttle store:    %s\n", throttle)
	fmt.Fprintf(out, "  Policies:          redirect=%s status=%s\n", cfg.RedirectPolicy, cfg.StatusPolicy)
	fmt.Fprintf(out, "  URL patterns:      %d\n", len(cfg.URLPatterns))
	for _, p := range cfg.URLPatterns {
		fmt.Fprintf(out, "    - %s\n", p)
	}

	return nil
}
