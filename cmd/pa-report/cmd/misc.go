package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/pa-report/internal/server"
)

func (a *App) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pa_* tools over MCP on stdin/stdout",
		Long: `mcp starts a Model Context Protocol server speaking JSON-RPC 2.0 on
stdin/stdout. Configure it in your MCP client; logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			server.Version = a.version
			return server.New(a.cfg, a.log).Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *App) configCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ParseFormat(format)
			if err != nil {
				return err
			}
			if f == FormatJSON {
				return writeJSON(cmd.OutOrStdout(), a.cfg)
			}
			return writeYAML(cmd.OutOrStdout(), a.cfg)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	return cmd
}

func (a *App) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "pa-report %s\n", a.version)
			fmt.Fprintf(w, "  Build time: %s\n", a.buildTime)
			fmt.Fprintf(w, "  Git commit: %s\n", a.gitCommit)
			return nil
		},
	}
}
