package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/config"
)

func newTokenCmd() *cobra.Command {
	var (
		account string
		device  string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an agent (needs MARKSYNC_JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := auth.GenerateToken(account, device, ttl, config.LoadTokenSecret())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&account, "account", "", "account the token grants access to")
	f.StringVar(&device, "device", "", "device name recorded in version history")
	f.DurationVar(&ttl, "ttl", 0, "token lifetime, 0 never expires")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
