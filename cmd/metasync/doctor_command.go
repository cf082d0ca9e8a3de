package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"metasync/internal/config"
	"metasync/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor [library-root]",
		Short: "Check the library root, local directories and TMDB access",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			root, err = resolveRoot(root)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			fmt.Fprintln(out, renderHeading("Checking "+root, colorize))
			results := preflight.RunAll(cmd.Context(), cfg, root)
			failed := 0
			for _, r := range results {
				if !r.Passed {
					failed++
				}
				fmt.Fprintln(out, renderCheck(r.Name, r.Passed, r.Detail, colorize))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			return nil
		},
	}
}

func resolveRoot(path string) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve library root: %w", err)
	}
	return expanded, nil
}
