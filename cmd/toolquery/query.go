package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolquery/pipeline"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		toolName      string
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "query <text>...",
		Short: "Answer one query and print the JSON envelope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			req := pipeline.Request{Query: strings.Join(args, " "), Tool: toolName}
			if cmd.Flags().Changed("limit") {
				req.Limit = &limit
			}
			if cmd.Flags().Changed("offset") {
				req.Offset = &offset
			}

			resp := a.pipeline.Run(ctx, req)
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("query failed: %s", resp.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&toolName, "tool", "", "force a tool by name")
	cmd.Flags().IntVar(&limit, "limit", 0, "override the parsed result limit")
	cmd.Flags().IntVar(&offset, "offset", 0, "override the parsed result offset")
	return cmd
}

func newToolsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()
			return printJSON(cmd.OutOrStdout(), a.pipeline.Tools())
		},
	}
}

func newParseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>...",
		Short: "Show how a query is interpreted without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()
			return printJSON(cmd.OutOrStdout(), a.pipeline.Parse(strings.Join(args, " ")))
		},
	}
}

func setup(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, appOptions{})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
