package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jpalmerr/publink"
	"github.com/jpalmerr/publink/config"
	"github.com/spf13/cobra"
)

// checkCmd runs one check over a file or stdin.
var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check the project links in a file",
	Long: `Check every project link in a file, or in stdin when no file is given
or the file is "-", and print a warning for each link that is not publicly
viewable.

Exit codes:
  0 - Every project link is publicly viewable (or there are none)
  1 - At least one link is not, or the check could not run

Example:
  publink check notes.md
  publink check --html page.html
  cat notes.md | publink check -c config.yaml --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("config", "c", "", "path to config file (defaults apply when omitted)")
	checkCmd.Flags().Bool("html", false, "treat the input as HTML")
	checkCmd.Flags().Bool("json", false, "print warnings as JSON")
	checkCmd.Flags().Duration("timeout", 30*time.Second, "overall time limit for the check")
	checkCmd.Flags().StringSlice("pattern", nil, "project link prefix (repeatable, replaces configured patterns)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger, closer, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	var opts []publink.Option
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if patterns, _ := cmd.Flags().GetStringSlice("pattern"); len(patterns) > 0 {
			cfg.URLPatterns = patterns
		}
		if opts, err = config.BuildOptions(cfg); err != nil {
			return fmt.Errorf("failed to build options: %w", err)
		}
	} else if patterns, _ := cmd.Flags().GetStringSlice("pattern"); len(patterns) > 0 {
		opts = append(opts, publink.WithURLPatterns(patterns...))
	}
	opts = append(opts,
		publink.WithLogger(logger),
		publink.WithUserAgent("publink/"+version),
	)

	checker, err := publink.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create checker: %w", err)
	}
	defer checker.Close()

	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var warnings publink.WarningSet
	if html, _ := cmd.Flags().GetBool("html"); html {
		warnings, err = checker.CheckHTML(ctx, bytes.NewReader(input))
	} else {
		warnings, err = checker.Check(ctx, string(input))
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(warnings); err != nil {
			return fmt.Errorf("failed to encode warnings: %w", err)
		}
	} else {
		for _, w := range warnings {
			fmt.Fprintf(out, "WARN  %s\n", w.Message)
		}
		if len(warnings) == 0 {
			fmt.Fprintln(out, "All project links are publicly viewable.")
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("%d project link(s) may not be publicly viewable", len(warnings))
	}
	return nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}
