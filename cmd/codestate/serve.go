package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/codestate/codestate-core/handlers"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/manifest"
	"github.com/codestate/codestate-core/prompt"
	"github.com/codestate/codestate-core/router"
	"github.com/codestate/codestate-core/transport"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var ws bool
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the UI protocol on stdin/stdout or a WebSocket",
		Long: `Serve the UI protocol. By default requests are read from stdin and
responses written to stdout, one JSON message per line. With --ws the same
messages travel over a WebSocket at /ws, and Prometheus metrics are served
at /metrics. Browser pages may connect only from loopback origins or the
origins listed in allowed_origins.

On start, the project's .codestate/scripts.yaml is imported and scripts and
terminal collections marked to run on open are launched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.getApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a.startWorkspace(ctx, o.root)

			r := router.New(router.WithObserver(a.metrics.ObserveDispatch))
			r.MustRegister(handlers.All(handlers.Deps{
				Store:       a.store,
				Resumer:     a.orchestrator(o.root),
				Collector:   a.collector(),
				Broker:      prompt.NewBroker(),
				Config:      a.cfg,
				CurrentRoot: func() string { return o.root },
			})...)

			if !ws {
				return transport.NewStdio(cmd.InOrStdin(), cmd.OutOrStdout(), r).Run(ctx)
			}
			if addr == "" {
				addr = a.cfg.GetListenAddr()
			}
			wsHandler := transport.NewWebSocket(r,
				transport.WithConnectionGauge(a.metrics.WSConnections.Add),
				transport.WithAllowedOrigins(a.cfg.GetAllowedOrigins()...),
			)
			srv := &transport.Server{
				Addr:    addr,
				WS:      wsHandler,
				Metrics: a.metrics.Handler(),
				Debug:   o.debug,
			}
			cmd.PrintErrf("Listening on ws://%s/ws\n", addr)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().BoolVar(&ws, "ws", false, "Serve over WebSocket instead of stdio")
	cmd.Flags().StringVar(&addr, "addr", "", "WebSocket listen address (default from config)")
	return cmd
}

// startWorkspace imports the project manifest and runs on-open automation.
// Failures are logged; the server starts regardless.
func (a *app) startWorkspace(ctx context.Context, root string) {
	log := logger.WithComponent("serve").With("root", root)

	if m, err := manifest.Load(root); err != nil {
		log.Warn("failed to load script manifest", "error", err)
	} else if m != nil {
		if rep, err := manifest.Import(ctx, a.store, root, m); err != nil {
			log.Warn("failed to import script manifest", "error", err)
		} else {
			log.Info("imported script manifest", "report", rep.String())
		}
	}

	if a.cfg.AutoResumeEnabled() {
		a.scheduler().AutoResumeForWorkspace(ctx, root)
	}
}
