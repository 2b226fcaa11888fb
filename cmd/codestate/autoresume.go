package main

import (
	"github.com/spf13/cobra"
)

func newAutoResumeCmd(o *rootOptions) *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "autoresume",
		Short: "Launch the project's on-open scripts and terminal collections",
		Long: `Launch every script and terminal collection of the project marked to
run on open. Failures are logged and never change the exit status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.getApp()
			if err != nil {
				return err
			}
			a.scheduler().AutoResumeForWorkspace(cmd.Context(), o.root)
			if !detach {
				a.runner.Wait()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&detach, "detach", false, "Exit without waiting for launched scripts")
	return cmd
}
