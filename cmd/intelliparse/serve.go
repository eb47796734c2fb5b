package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/tsawler/intelliparse"
	"github.com/tsawler/intelliparse/metrics"
	"github.com/tsawler/intelliparse/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx := cmd.Context()
			c, err := a.build(ctx)
			if err != nil {
				return err
			}
			defer c.close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m, err := metrics.New(reg)
			if err != nil {
				return err
			}

			cfg := a.pipelineConfig(c, false)
			cfg.Observer = m
			opts := server.Options{
				Pipeline:       intelliparse.New(cfg),
				Metrics:        m,
				Gatherer:       reg,
				MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
				Logger:         a.log,
			}
			if c.ai != nil {
				cfg.AIAssist = true
				opts.Assisted = intelliparse.New(cfg)
			}

			a.log.Info("starting server", "addr", a.cfg.Server.Addr, "ai", c.ai != nil, "ocr", c.ocr != nil)
			return server.New(opts).Run(ctx, a.cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
