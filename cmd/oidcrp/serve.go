package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/oidcrp/bootstrap"
	"github.com/kbukum/oidcrp/config"
	"github.com/kbukum/oidcrp/internal/app"
)

func newServeCmd() *cobra.Command {
	var configFile, envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the login, callback and session endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []config.Option
			if configFile != "" {
				opts = append(opts, config.WithConfigFile(configFile))
			}
			if envFile != "" {
				opts = append(opts, config.WithEnvFile(envFile))
			}
			var cfg app.Config
			if err := config.Load("oidcrp", &cfg, opts...); err != nil {
				return err
			}
			a, err := bootstrap.NewApp(&cfg)
			if err != nil {
				return err
			}
			if err := app.Wire(a); err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (default: config.yml in ., ./config or ./cmd/oidcrp)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file loaded before the config")
	return cmd
}
