package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codestate/codestate-core/cli"
	"github.com/codestate/codestate-core/exec"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/paths"
)

func newDoctorCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check required tools and show where data is kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker := cli.NewChecker(exec.NewRealExecutor())
			results := checker.CheckAll(cmd.Context(), cli.DefaultPrerequisites(o.cfg.GetEditorCommand()))
			fmt.Fprint(cmd.OutOrStdout(), cli.FormatCheckResults(results))

			fmt.Fprintln(cmd.OutOrStdout(), "Paths:")
			for _, p := range []struct {
				name string
				fn   func() (string, error)
			}{
				{"config", paths.ConfigFilePath},
				{"store", paths.StoreFilePath},
				{"exports", paths.ExportsDir},
				{"logs", logger.DefaultLogPath},
			} {
				if path, err := p.fn(); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %s\n", p.name, path)
				}
			}

			return cli.ValidateRequired(results)
		},
	}
}
