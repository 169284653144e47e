package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCredentialsCommand(ctx *commandContext) *cobra.Command {
	credsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Show or replace the gateway API key",
	}

	credsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show whether a key is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()
			creds := rt.Credentials.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "Base URL: %s\nKey:      %s\n", creds.BaseURL, maskKey(creds.APIKey))
			return nil
		},
	})

	var baseURL string
	set := &cobra.Command{
		Use:   "set <api-key>",
		Short: "Store a new API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()
			creds, err := rt.Credentials.Update(cmd.Context(), args[0], baseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored key %s for %s\n", maskKey(creds.APIKey), creds.BaseURL)
			return nil
		},
	}
	set.Flags().StringVar(&baseURL, "base-url", "", "Gateway base URL, when not fixed by configuration")
	credsCmd.AddCommand(set)

	return credsCmd
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "…" + key[len(key)-4:]
	}
}
