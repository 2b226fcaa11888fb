package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codestate/codestate-core/prompt"
	"github.com/codestate/codestate-core/reconcile"
)

func newResumeCmd(o *rootOptions) *cobra.Command {
	var yes bool
	var message string
	var detach bool

	cmd := &cobra.Command{
		Use:   "resume <session>",
		Short: "Resume a saved session",
		Long: `Resume a saved session by id or name: reconcile the working tree
with the session's branch, reopen its files and relaunch its scripts.

If the working tree has uncommitted changes you are asked whether to commit
them first. --yes commits without asking, using --message.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.getApp()
			if err != nil {
				return err
			}

			var prompts reconcile.Prompts
			switch {
			case yes && message != "":
				prompts = prompt.CommitWith(message).Prompts()
			case yes:
				return errYesNeedsMessage
			default:
				in := cmd.InOrStdin()
				prompts = prompt.NewTerminal(in, cmd.OutOrStdout(), !isTerminal(in)).Prompts()
			}

			sess, err := a.orchestrator(o.root).Resume(cmd.Context(), args[0], prompts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resumed session %q on %s\n", sess.Name, sess.Git.Branch)

			if !detach {
				a.runner.Wait()
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Commit uncommitted changes without asking")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message used with --yes")
	cmd.Flags().BoolVar(&detach, "detach", false, "Exit without waiting for launched scripts")
	return cmd
}

var errYesNeedsMessage = usageError("--yes requires --message")

type usageError string

func (e usageError) Error() string { return string(e) }

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
