package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bionicotaku/lingo-utils-authx"
)

type rootOptions struct {
	v      *viper.Viper
	logger zerolog.Logger
}

func (o *rootOptions) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("env-file", ".env", "Optional .env file loaded before reading AUTHX_* variables")
	flags.String("api-url", "", "Provider auth URL, e.g. https://<ref>.supabase.co/auth/v1 (env AUTHX_API_URL)")
	flags.String("api-key", "", "Provider API key (env AUTHX_API_KEY)")
	flags.String("jwt-secret", "", "Token signing secret (env AUTHX_JWT_SECRET)")
	flags.String("jwks-url", "", "Verify tokens against this JWKS instead of the secret (env AUTHX_JWKS_URL)")
	flags.Duration("timeout", 0, "Provider request timeout (env AUTHX_TIMEOUT)")
	flags.Bool("debug", false, "Enable debug logging")

	o.v = viper.New()
	o.v.SetEnvPrefix("AUTHX")
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()
	_ = o.v.BindPFlags(flags)
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	envFile := o.v.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	level := zerolog.InfoLevel
	if o.v.GetBool("debug") {
		level = zerolog.DebugLevel
	}
	o.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// config merges AUTHX_* variables with flags; flags win.
func (o *rootOptions) config() (authx.Config, error) {
	cfg, err := authx.ConfigFromEnv()
	if err != nil {
		return authx.Config{}, err
	}
	if v := o.v.GetString("api-url"); v != "" {
		cfg.APIURL = v
	}
	if v := o.v.GetString("api-key"); v != "" {
		cfg.APIKey = v
	}
	if v := o.v.GetString("jwt-secret"); v != "" {
		cfg.JWTSecret = v
	}
	if v := o.v.GetString("jwks-url"); v != "" {
		cfg.JWKSURL = v
	}
	if v := o.v.GetDuration("timeout"); v > 0 {
		cfg.Timeout = v
	}
	logger := o.logger
	cfg.Logger = &logger
	return cfg, nil
}

// secret returns the signing secret for commands that do not need a provider.
func (o *rootOptions) secret() (string, error) {
	if v := o.v.GetString("jwt-secret"); v != "" {
		return v, nil
	}
	return "", errors.New("jwt secret is required (--jwt-secret or AUTHX_JWT_SECRET)")
}
