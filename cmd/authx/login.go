package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-authx"
)

func loginCmd(opts *rootOptions) *cobra.Command {
	var (
		email, phone, password string
		printToken             bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a password and verify the issued token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" || (email == "" && phone == "") {
				return errors.New("--password and one of --email or --phone are required")
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			state, err := authx.New[authx.Extra, authx.Extra, authx.Extra](cmd.Context(), cfg)
			if err != nil {
				return err
			}

			session, err := state.Service().SignIn(cmd.Context(), authx.Credentials{Email: email, Phone: phone, Password: password})
			if err != nil {
				return fmt.Errorf("sign in: %w", err)
			}
			opts.logger.Info().Object("session", session).Msg("signed in")

			claims, err := state.Decoder().Decode(session.AccessToken.Secret())
			if err != nil {
				return fmt.Errorf("issued token failed verification (%s): %w", authx.CodeOf(err), err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "== Signed in ==")
			fmt.Fprintf(w, "user_id      : %s\n", session.User.ID)
			fmt.Fprintf(w, "email        : %s\n", claims.Email)
			fmt.Fprintf(w, "role         : %s\n", claims.Role)
			fmt.Fprintf(w, "provider     : %s\n", claims.AppMetadata.Provider)
			fmt.Fprintf(w, "expires_at   : %s\n", session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
			if printToken {
				fmt.Fprintf(w, "access_token : %s\n", session.AccessToken.Secret())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&phone, "phone", "", "User phone")
	cmd.Flags().StringVar(&password, "password", "", "User password")
	cmd.Flags().BoolVar(&printToken, "print-token", false, "Print the raw access token")

	return cmd
}
