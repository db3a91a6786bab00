package main

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/keypoint-match/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: "Serve exposes keypoint detection and matching as MCP tools over " +
			"stdin/stdout. Logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipe, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			logger.Info("keypoint-match MCP server", "version", Version, "built", BuildTime, "commit", GitCommit)
			return server.New(pipe, Version, logger).Serve(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
