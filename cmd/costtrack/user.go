package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/costtrack/costtrack/internal/auth"
	"github.com/costtrack/costtrack/internal/cache"
	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/repository"
	"github.com/costtrack/costtrack/internal/service"
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a user account",
	Example: `  costtrack create-user --user-name alice --password 's3cret'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userName, _ := cmd.Flags().GetString("user-name")
		password, _ := cmd.Flags().GetString("password")

		store, err := repository.Open(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		hasher, err := auth.NewPasswordHasher(auth.DefaultArgon2Params)
		if err != nil {
			return err
		}
		// Tokens issued by signup are discarded; only the user row matters here.
		tokens := auth.NewTokenIssuer(cfg.JWTSecretKey, time.Minute, time.Minute, nil)
		svc := service.NewAuthService(store, hasher, tokens, cache.NewMemoryDenylist(nil), logger, metrics.NewNoop())

		user, _, err := svc.Signup(cmd.Context(), service.Credentials{UserName: userName, Password: password})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %q with id %d\n", user.UserName, user.ID)
		return nil
	},
}

func init() {
	createUserCmd.Flags().String("user-name", "", "user name (required)")
	createUserCmd.Flags().String("password", "", "password (required)")
	_ = createUserCmd.MarkFlagRequired("user-name")
	_ = createUserCmd.MarkFlagRequired("password")
}
