package main

import (
	"github.com/ZygoteCode/SSCP/internal/cmdutil"
	"github.com/ZygoteCode/SSCP/internal/config"
	"github.com/ZygoteCode/SSCP/server"
	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or validate serve configuration files",
	}
	cmd.AddCommand(a.configInitCmd(), a.configCheckCmd())
	return cmd
}

func (a *app) configInitCmd() *cobra.Command {
	var (
		out       string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := config.Template(config.DefaultServe())
			if err != nil {
				return err
			}
			if out == "-" {
				_, err := a.stdout.Write(b)
				return err
			}
			if err := cmdutil.WriteNewFile(out, b, overwrite); err != nil {
				return err
			}
			a.log.Info().Str("path", out).Msg("config written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "sscp.toml", "output file, or - for stdout")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite an existing file")
	return cmd
}

func (a *app) configCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Load a config file and validate the server settings",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cmdutil.Usagef("%s requires exactly one file", cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServe(args[0])
			if err != nil {
				return cmdutil.Usagef("%v", err)
			}
			srv, err := server.New(cfg.Server)
			if err != nil {
				return cmdutil.Usagef("%v", err)
			}
			srv.Stop()
			return cmdutil.WriteJSON(a.stdout, map[string]any{
				"ok":        true,
				"listen":    cfg.Listen,
				"path":      cfg.Server.Path,
				"max_users": cfg.Server.MaxUsers,
			}, false)
		},
	}
	return cmd
}
