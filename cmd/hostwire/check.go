package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/hostwire/internal/config"
	"example.com/hostwire/internal/server"
)

func newCheckCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a configuration file without starting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			serverCfg, err := server.BuildServerConfig(cfg, server.NewDefaultServiceRegistry(), nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration OK: %s, %d virtual hosts\n",
				cfg.OriginalFilePath(), len(serverCfg.VirtualHosts()))
			for _, vh := range serverCfg.VirtualHosts() {
				marker := ""
				if vh == serverCfg.DefaultVirtualHost() {
					marker = " (default)"
				}
				fmt.Fprintf(out, "  %s%s\n", vh, marker)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
