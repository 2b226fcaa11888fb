package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codestate/codestate-core/manifest"
	"github.com/codestate/codestate-core/model"
)

func newScriptsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scripts",
		Aliases: []string{"script"},
		Short:   "Manage project scripts",
	}
	cmd.AddCommand(newScriptsListCmd(o))
	cmd.AddCommand(newScriptsImportCmd(o))
	return cmd
}

func newScriptsListCmd(o *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the project's scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.getApp()
			if err != nil {
				return err
			}
			filter := model.ScriptFilter{RootPath: o.root}
			if all {
				filter = model.ScriptFilter{}
			}
			scripts, err := a.store.GetScripts(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(scripts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scripts.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODE\tLIFECYCLE\tCOMMANDS")
			for _, s := range scripts {
				lifecycle := make([]string, len(s.Lifecycle))
				for i, l := range s.Lifecycle {
					lifecycle[i] = string(l)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					s.ID, s.Name, s.ExecutionMode, strings.Join(lifecycle, ","), len(s.Commands))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List scripts of every project")
	return cmd
}

func newScriptsImportCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import scripts from .codestate/scripts.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.getApp()
			if err != nil {
				return err
			}
			m, err := manifest.Load(o.root)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("no manifest at %s", manifest.Path(o.root))
			}
			rep, err := manifest.Import(cmd.Context(), a.store, o.root, m)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Imported " + rep.String())
			return nil
		},
	}
}
