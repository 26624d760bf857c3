package cmd

import (
	"github.com/spf13/cobra"

	"jmxgen/internal/mcp"
)

func newMCPCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio",
		Long: "Serve the generation pipeline as MCP (Model Context Protocol) tools\n" +
			"over stdio, for use by AI coding agents.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := app.newLogger()
			if err != nil {
				return err
			}
			defer log.Close()
			return mcp.NewServer(log).Serve()
		},
	}
}
