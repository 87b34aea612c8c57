package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "authx",
		Short: "Inspect and exercise a GoTrue-compatible auth provider",
		Long: `authx talks to a GoTrue-compatible auth provider (such as Supabase Auth).

It can verify session tokens, sign in with a password, mint development
tokens and run a small demo server with cookie based sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	opts.bindFlags(rootCmd)

	rootCmd.AddCommand(
		decodeCmd(opts),
		loginCmd(opts),
		mintCmd(opts),
		serveCmd(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
