package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-authx"
)

func mintCmd(opts *rootOptions) *cobra.Command {
	d := authx.DefaultDevClaims()
	var groups []string

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Sign a development session token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := opts.secret()
			if err != nil {
				return err
			}
			if len(groups) > 0 {
				d.AppMetadata["groups"] = groups
			}
			token, err := authx.MintDevToken(secret, d)
			if err != nil {
				return err
			}
			opts.logger.Debug().Str("user_id", d.Subject).Dur("ttl", d.TTL).Msg("minted token")
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&d.Subject, "sub", d.Subject, "Subject (user id)")
	cmd.Flags().StringVar(&d.Email, "email", d.Email, "Email claim")
	cmd.Flags().StringVar(&d.Role, "role", d.Role, "Role claim")
	cmd.Flags().StringVar(&d.Audience, "audience", d.Audience, "Audience claim")
	cmd.Flags().DurationVar(&d.TTL, "ttl", time.Hour, "Token lifetime")
	cmd.Flags().StringSliceVar(&groups, "group", nil, "app_metadata.groups entry, repeatable")

	return cmd
}
