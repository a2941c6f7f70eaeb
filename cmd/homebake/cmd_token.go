/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/toptech5419/homebake/internal/auth"
	"github.com/toptech5419/homebake/internal/db"
	"github.com/toptech5419/homebake/internal/staff"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed access token for a staff member",
	Long: `Issue a JWT for an existing, active staff member.

The token carries the member's current role and is signed with
HOMEBAKE_JWT_SIGNING_KEY.

Examples:
  homebake token --user 0f7e6c1a-2b3d-4e5f-8a9b-0c1d2e3f4a5b --ttl 8h
`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "Staff member ID")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to HOMEBAKE_TOKEN_TTL_MINUTES)")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := initDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	user, err := staff.NewService(database, nil, logger).Get(cmd.Context(), tokenUser)
	if err != nil {
		return err
	}
	if !user.Active {
		return fmt.Errorf("staff member %s is inactive", user.Email)
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  []string{string(user.Role)},
	}, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
