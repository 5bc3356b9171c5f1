package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolquery/auth"
	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP query API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, opts)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}

			a, err := newApp(ctx, cfg, appOptions{})
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
				defer cancel()
				_ = a.Close(shutdownCtx)
			}()

			authn, err := cfg.Auth.Authenticator()
			if err != nil {
				return err
			}
			var adminRole string
			if cfg.Auth.Enabled {
				adminRole = cfg.Auth.AdminRole
			}

			srv, err := server.New(server.Config{
				Addr:            cfg.Server.Listen,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				Pipeline:        a.pipeline,
				Cache:           a.cache,
				Health:          a.health,
				Gatherer:        a.metrics,
				Registerer:      a.metrics,
				Auth: auth.MiddlewareConfig{
					Authenticator:  authn,
					AllowAnonymous: cfg.Auth.AllowAnonymous,
				},
				AdminRole: adminRole,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}

			a.watchVocabulary(ctx)
			a.logger.Info(ctx, "serving",
				observe.Field{Key: "addr", Value: cfg.Server.Listen},
				observe.Field{Key: "tools", Value: a.registry.Len()},
				observe.Field{Key: "auth", Value: cfg.Auth.Enabled},
			)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides server.listen")
	return cmd
}
