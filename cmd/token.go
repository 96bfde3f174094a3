/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seckatie/marksync/internal/config"
	"github.com/seckatie/marksync/internal/core/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed access token for a user",
	Long: `Issue an HS256 access token signed with the server's JWT secret
(auth.jwt_secret or MARKSYNC_JWT_SECRET). Only useful in jwt auth mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Auth.Mode != config.AuthJWT {
			return fmt.Errorf("tokens can only be issued in %s auth mode", config.AuthJWT)
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("a JWT secret is required (auth.jwt_secret or MARKSYNC_JWT_SECRET)")
		}

		user, err := cmd.Flags().GetString("user")
		if err != nil {
			return err
		}
		email, err := cmd.Flags().GetString("email")
		if err != nil {
			return err
		}
		ttl, err := cmd.Flags().GetDuration("ttl")
		if err != nil {
			return err
		}

		authn, err := auth.NewJWTAuthenticator(cfg.Auth.JWTSecret)
		if err != nil {
			return err
		}
		token, err := authn.Issue(user, email, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringP("user", "u", "", "User id (token subject)")
	tokenCmd.Flags().String("email", "", "Email claim")
	tokenCmd.Flags().Duration("ttl", 30*24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
