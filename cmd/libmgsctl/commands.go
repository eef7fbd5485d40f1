package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aoideee/libmgs/internal/circulation"
	"github.com/aoideee/libmgs/internal/data"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Create or upgrade the library tables. Running it against an up-to-date
database does nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := data.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ schema is up to date")
		return nil
	},
}

var (
	// create-staff flags
	staffUsername string
	staffEmail    string
	staffPassword string
)

var createStaffCmd = &cobra.Command{
	Use:   "create-staff",
	Short: "Create a staff account",
	Long: `Create an account that can manage books and issue and return loans.

Examples:
  libmgsctl create-staff --username alice --email alice@library.org --password 's3cret-pass'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *circulation.Service) error {
			user, err := svc.CreateStaff(cmd.Context(), staffUsername, staffEmail, staffPassword)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ created staff account %q (id %d)\n", user.Username, user.ID)
			return nil
		})
	},
}

var deleteAccountCmd = &cobra.Command{
	Use:   "delete-account <username>",
	Short: "Delete an account",
	Long: `Delete an account by username. A member's profile and loan history are
deleted with it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *circulation.Service) error {
			if err := svc.DeleteAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ deleted account %q\n", args[0])
			return nil
		})
	},
}

func init() {
	createStaffCmd.Flags().StringVar(&staffUsername, "username", "", "Account username")
	createStaffCmd.Flags().StringVar(&staffEmail, "email", "", "Account email address")
	createStaffCmd.Flags().StringVar(&staffPassword, "password", "", "Account password (8 to 72 bytes)")
	createStaffCmd.MarkFlagRequired("username")
	createStaffCmd.MarkFlagRequired("email")
	createStaffCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(migrateCmd, createStaffCmd, deleteAccountCmd)
}
