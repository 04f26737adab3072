package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/molanp/yunhu-adapter/internal/auth"
	"github.com/molanp/yunhu-adapter/internal/config"
	"github.com/molanp/yunhu-adapter/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var path string

	root := &cobra.Command{
		Use:          "yunhu",
		Short:        "Yunhu webhook adapter",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe(resolveConfigPath(path))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&path, "config", "", "config file path, overrides CONFIG_PATH")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook endpoint and connect configured bots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe(resolveConfigPath(path))
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetInfo())
		},
	})
	root.AddCommand(newTokenCommand(&path))
	return root
}

func newTokenCommand(path *string) *cobra.Command {
	var (
		subject string
		botID   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a token for the outbound messaging API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(string(resolveConfigPath(*path)))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if ttl <= 0 {
				if ttl, err = cfg.Auth.ExpiresIn(); err != nil {
					return err
				}
			}
			token, expiresAt, err := auth.GenerateToken(subject, botID, cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "caller name recorded in the token")
	cmd.Flags().StringVar(&botID, "bot", "", "restrict the token to one bot app ID")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to auth.jwt_expires_in")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func resolveConfigPath(flagValue string) configPath {
	if flagValue != "" {
		return configPath(flagValue)
	}
	return configPath(os.Getenv("CONFIG_PATH"))
}
