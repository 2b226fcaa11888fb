package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codestate/codestate-core/export"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/prompt"
	"github.com/codestate/codestate-core/reconcile"
)

func newSessionsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage saved sessions",
	}
	cmd.AddCommand(newSessionsListCmd(o))
	cmd.AddCommand(newSessionsSaveCmd(o))
	cmd.AddCommand(newSessionsDeleteCmd(o))
	cmd.AddCommand(newSessionsExportCmd(o))
	return cmd
}

func newSessionsListCmd(o *rootOptions) *cobra.Command {
	var tags []string
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.getApp()
			if err != nil {
				return err
			}
			sessions, err := a.store.ListSessions(cmd.Context(), model.SessionFilter{Tags: tags, Search: search})
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tBRANCH\tPROJECT\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Name, s.Git.Branch, s.ProjectRoot, s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Only sessions carrying every tag")
	cmd.Flags().StringVar(&search, "search", "", "Only sessions whose name or notes contain text")
	return cmd
}

func newSessionsSaveCmd(o *rootOptions) *cobra.Command {
	var files, tags []string
	var notes string
	var commit bool

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the project's current state as a session",
		Long: `Save the project's current branch and commit, together with the given
files, as a named session.

--file takes path[:line[:column]] with one-based positions; the first file
is the active one. With --commit, uncommitted changes are committed first
after asking.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.getApp()
			if err != nil {
				return err
			}

			states := make([]model.FileState, 0, len(files))
			for i, arg := range files {
				fs, err := parseFileArg(arg)
				if err != nil {
					return err
				}
				fs.Position = i
				fs.IsActive = i == 0
				states = append(states, fs)
			}

			var prompts reconcile.Prompts
			if commit {
				in := cmd.InOrStdin()
				prompts = prompt.NewTerminal(in, cmd.OutOrStdout(), !isTerminal(in)).Prompts()
			}

			draft, err := a.collector().Collect(cmd.Context(), o.root, states, prompts)
			if err != nil {
				return err
			}
			draft.Name = args[0]
			if tags != nil {
				draft.Tags = tags
			}
			if notes != "" {
				draft.Notes = &notes
			}

			saved, err := a.store.SaveSession(cmd.Context(), *draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved session %q (%s) on %s\n", saved.Name, saved.ID, saved.Git.Branch)
			if saved.Git.IsDirty {
				fmt.Fprintln(cmd.OutOrStdout(), "Note: the working tree has uncommitted changes.")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "File to reopen, as path[:line[:column]] (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tags to attach")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().BoolVar(&commit, "commit", false, "Offer to commit uncommitted changes before saving")
	return cmd
}

// parseFileArg parses path[:line[:column]] with one-based positions.
func parseFileArg(arg string) (model.FileState, error) {
	fs := model.FileState{Path: arg}
	parts := strings.Split(arg, ":")
	nums := make([]int, 0, 2)
	for len(parts) > 1 && len(nums) < 2 {
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			break
		}
		if n < 1 {
			return fs, fmt.Errorf("invalid position in %q: positions start at 1", arg)
		}
		nums = append([]int{n}, nums...)
		parts = parts[:len(parts)-1]
	}
	fs.Path = strings.Join(parts, ":")
	if len(nums) > 0 {
		fs.Cursor.Line = nums[0] - 1
	}
	if len(nums) > 1 {
		fs.Cursor.Column = nums[1] - 1
	}
	return fs, nil
}

func newSessionsDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session>",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.getApp()
			if err != nil {
				return err
			}
			if err := a.store.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
			return nil
		},
	}
}

func newSessionsExportCmd(o *rootOptions) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Write a session to a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.getApp()
			if err != nil {
				return err
			}
			sess, err := a.store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if format == "" {
				format = a.cfg.GetExportFormat()
			}
			if out == "-" {
				data, err := export.Encode(sess, format)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			path, err := export.WriteSession(sess, out, format)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported session %q to %s\n", sess.Name, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout (default: exports directory)")
	return cmd
}
