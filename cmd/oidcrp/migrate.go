package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kbukum/oidcrp/auth/oidc"
)

func newMigrateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "migrate <legacy-settings-file>",
		Short: "Rewrite a legacy provider settings file into the current layout",
		Long: "Reads a flat legacy settings file (yaml or json), renames the old keys, " +
			"checks the result and writes it to --out. The rewritten keys are listed on stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := viper.New()
			in.SetConfigFile(args[0])
			if err := in.ReadInConfig(); err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			raw := in.AllSettings()

			cfg, touched, err := oidc.DecodeClientConfig(raw)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("migrated settings are invalid: %w", err)
			}

			migrated, _ := oidc.MigrateLegacy(raw)
			w := viper.New()
			for k, v := range migrated {
				w.Set(k, v)
			}
			if err := w.WriteConfigAs(out); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			for _, k := range touched {
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", k)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "provider.yml", "output file; the extension selects the format")
	return cmd
}
