package main

import (
	"log/slog"

	stencilmcp "github.com/rendis/stencil/pkg/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server over stdio",
	Long: `Starts stencil as an MCP server on standard input and output so agents can
render templates, call functions and inspect the journal as tools. Logs go
to stderr to keep the JSON-RPC stream clean.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		srv := stencilmcp.NewServer(stencilmcp.ServerDeps{
			Driver:    a.driver,
			Validator: a.validator,
			Journal:   a.journal,
			Logger:    a.logger,
			Version:   version,
		})

		a.logger.Info("mcp server starting", slog.String("transport", "stdio"))
		if err := srv.Serve(cmd.Context()); err != nil && cmd.Context().Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
