package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-authx"
)

func decodeCmd(opts *rootOptions) *cobra.Command {
	var (
		skipExpiry bool
		audience   string
	)

	cmd := &cobra.Command{
		Use:   "decode [token]",
		Short: "Verify a session token and print its claims",
		Long: `Verify a session token with the configured secret or JWKS and print the
decoded claims as JSON. The token may also be passed via AUTHX_TOKEN.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := os.Getenv("AUTHX_TOKEN")
			if len(args) == 1 {
				token = args[0]
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("token is required")
			}

			decoderOpts := []authx.DecoderOption{}
			if audience != "" {
				decoderOpts = append(decoderOpts, authx.WithAudience(audience))
			}
			if skipExpiry {
				decoderOpts = append(decoderOpts, authx.WithoutExpiryCheck())
			}

			var (
				decoder *authx.Decoder[authx.Extra, authx.Extra, authx.Extra]
				err     error
			)
			if jwksURL := opts.v.GetString("jwks-url"); jwksURL != "" {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				decoder, err = authx.FetchJWKSDecoder[authx.Extra, authx.Extra, authx.Extra](ctx, jwksURL, nil, decoderOpts...)
			} else {
				secret, serr := opts.secret()
				if serr != nil {
					return serr
				}
				decoder, err = authx.NewDecoder[authx.Extra, authx.Extra, authx.Extra](secret, decoderOpts...)
			}
			if err != nil {
				return err
			}

			claims, err := decoder.Decode(token)
			if err != nil {
				return fmt.Errorf("token rejected (%s): %w", authx.CodeOf(err), err)
			}
			opts.logger.Info().
				Str("user_id", claims.Subject).
				Time("expires_at", claims.ExpiresAt()).
				Msg("token verified")

			out, err := json.MarshalIndent(claims, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipExpiry, "skip-expiry", false, "Do not reject expired tokens")
	cmd.Flags().StringVar(&audience, "audience", "", "Expected audience (default authenticated)")

	return cmd
}
