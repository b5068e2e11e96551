package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/oidcrp/auth/oidc"
	"github.com/kbukum/oidcrp/httpclient"
)

func newDiscoverCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "discover <issuer>",
		Short: "Fetch and print an issuer's OpenID configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hc, err := httpclient.New(httpclient.Config{Timeout: timeout})
			if err != nil {
				return err
			}
			md, err := oidc.Discover(cmd.Context(), hc, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(md)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}
