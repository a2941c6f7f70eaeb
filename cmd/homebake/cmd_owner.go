/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toptech5419/homebake/internal/db"
	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/staff"
)

var (
	ownerName  string
	ownerEmail string
)

var createOwnerCmd = &cobra.Command{
	Use:   "create-owner",
	Short: "Create an owner account",
	Long: `Create an owner account directly in the database.

Staff management over the API requires an owner, so a fresh
installation needs one created here first.`,
	RunE: runCreateOwner,
}

func init() {
	createOwnerCmd.Flags().StringVar(&ownerName, "name", "", "Owner display name")
	createOwnerCmd.Flags().StringVar(&ownerEmail, "email", "", "Owner email address")
	_ = createOwnerCmd.MarkFlagRequired("name")
	_ = createOwnerCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(createOwnerCmd)
}

func runCreateOwner(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := initDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	user, err := staff.NewService(database, nil, logger).Create(cmd.Context(), staff.CreateRequest{
		Name:  ownerName,
		Email: ownerEmail,
		Role:  models.RoleOwner,
	}, events.Actor{UserAgent: "homebake-cli"})
	if err != nil {
		return err
	}

	logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("owner created")
	fmt.Fprintln(cmd.OutOrStdout(), user.ID)
	return nil
}
