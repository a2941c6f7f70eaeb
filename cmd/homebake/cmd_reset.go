/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/db"
	"github.com/toptech5419/homebake/internal/models"
)

var (
	resetForce      bool
	resetKeepOwners bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database to a fresh state",
	Long: `Reset HomeBake to a fresh state.

This command will:
- Drop all tables from the database
- Re-create empty tables
- Optionally restore owner accounts

WARNING: This action is irreversible! All data will be lost.

Examples:
  # Interactive reset (will prompt for confirmation)
  homebake reset

  # Force reset without confirmation, keeping owner accounts
  homebake reset --force --keep-owners
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	resetCmd.Flags().BoolVar(&resetKeepOwners, "keep-owners", false, "Preserve owner accounts")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if !resetForce {
		fmt.Println("This will DELETE ALL production, sales, handoff and audit records.")
		if !resetKeepOwners {
			fmt.Println("All staff accounts, owners included, will be removed.")
		}
		fmt.Print("Type 'yes' to confirm reset: ")
		response, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	database, err := initDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	owners, err := resetDatabase(database, resetKeepOwners)
	if err != nil {
		return err
	}

	logger.Info().Int("owners_kept", owners).Msg("database reset complete")
	return nil
}

// resetDatabase drops and re-creates every table. When keepOwners is set the
// owner accounts are restored afterwards; it returns how many were kept.
func resetDatabase(database *gorm.DB, keepOwners bool) (int, error) {
	var owners []models.User
	if keepOwners {
		if err := database.Where("role = ?", models.RoleOwner).Find(&owners).Error; err != nil {
			return 0, fmt.Errorf("load owners: %w", err)
		}
	}

	tables := db.Models()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := database.Migrator().DropTable(tables[i]); err != nil {
			return 0, fmt.Errorf("drop %T: %w", tables[i], err)
		}
	}
	if err := db.Migrate(database); err != nil {
		return 0, err
	}

	if len(owners) > 0 {
		if err := database.Create(&owners).Error; err != nil {
			return 0, fmt.Errorf("restore owners: %w", err)
		}
	}
	return len(owners), nil
}
