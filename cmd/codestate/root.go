package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codestate/codestate-core/autoresume"
	"github.com/codestate/codestate-core/collector"
	"github.com/codestate/codestate-core/config"
	"github.com/codestate/codestate-core/editor"
	"github.com/codestate/codestate-core/exec"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/metrics"
	"github.com/codestate/codestate-core/reconcile"
	"github.com/codestate/codestate-core/resume"
	"github.com/codestate/codestate-core/runner"
	"github.com/codestate/codestate-core/store"
	"github.com/codestate/codestate-core/vcs"
)

// rootOptions are the persistent flags and the lazily built app.
type rootOptions struct {
	debug     bool
	logStderr bool
	root      string

	cfg *config.Config
	app *app
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "codestate",
		Short:         "Save and resume coding sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.init(cmd)
		},
	}

	cmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&o.logStderr, "log-stderr", false, "Log to stderr instead of the log file")
	cmd.PersistentFlags().StringVar(&o.root, "root", "", "Project root (default: current directory)")

	cmd.AddCommand(newServeCmd(o))
	cmd.AddCommand(newResumeCmd(o))
	cmd.AddCommand(newAutoResumeCmd(o))
	cmd.AddCommand(newSessionsCmd(o))
	cmd.AddCommand(newScriptsCmd(o))
	cmd.AddCommand(newDoctorCmd(o))

	return cmd
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	o.cfg = cfg

	if o.logStderr {
		logger.InitWriter(cmd.ErrOrStderr())
	} else if path, err := logger.DefaultLogPath(); err == nil {
		if err := logger.Init(path); err != nil {
			return err
		}
	}
	logger.SetDebug(o.debug || cfg.IsDebug())

	if o.root == "" {
		if o.root, err = os.Getwd(); err != nil {
			return err
		}
	}
	if o.root, err = filepath.Abs(o.root); err != nil {
		return err
	}
	return nil
}

// app holds the wired components shared by the commands.
type app struct {
	cfg        *config.Config
	store      *store.FileStore
	runner     *runner.Runner
	reconciler *reconcile.Reconciler
	metrics    *metrics.Metrics
}

func (o *rootOptions) getApp() (*app, error) {
	if o.app != nil {
		return o.app, nil
	}
	cfg := o.cfg
	m := metrics.New()
	executor := exec.NewRealExecutor()

	r := runner.New(runner.WithExecutor(executor))
	launcher := runner.NewLauncher(editor.NewOpener(executor, cfg.GetEditorCommand()), r)
	st, err := store.OpenDefault(store.WithLauncher(launcher))
	if err != nil {
		return nil, err
	}

	rec := reconcile.New(
		vcs.NewGitGateway(vcs.WithExecutor(executor)),
		reconcile.WithBackoff(reconcile.Backoff{
			Attempts: cfg.GetSettleAttempts(),
			Initial:  cfg.GetSettleInitialDelay(),
			Max:      reconcile.DefaultBackoff.Max,
		}),
		reconcile.WithObserver(m.ObserveReconcileState),
	)

	o.app = &app{cfg: cfg, store: st, runner: r, reconciler: rec, metrics: m}
	return o.app, nil
}

func (a *app) orchestrator(root string) *resume.Orchestrator {
	return resume.New(a.store, a.reconciler,
		resume.WithCurrentRoot(func() string { return root }),
		resume.WithCompletion(a.metrics.ObserveResume),
	)
}

func (a *app) scheduler() *autoresume.Scheduler {
	return autoresume.New(a.store, a.store, autoresume.WithOutcome(a.metrics.ObserveAutoResume))
}

func (a *app) collector() *collector.Collector {
	return collector.New(a.reconciler, a.cfg.GetEditorCommand())
}
