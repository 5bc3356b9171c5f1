package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolquery/mcpserver"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, opts)
			if err != nil {
				return err
			}

			// stdout carries the protocol.
			a, err := newApp(ctx, cfg, appOptions{logWriter: os.Stderr, exportWriter: os.Stderr})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			srv, err := mcpserver.New(mcpserver.Config{
				Name:     "toolquery",
				Version:  version,
				Pipeline: a.pipeline,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			a.watchVocabulary(ctx)
			return srv.RunStdio(ctx)
		},
	}
}
