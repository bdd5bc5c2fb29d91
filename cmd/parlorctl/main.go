// parlorctl is the operator CLI: database initialization and account
// administration against the same database the service runs on.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quokkahq/parlor/internal/parlor/app"
	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/internal/parlor/store/drivers/sqlite"
	"github.com/quokkahq/parlor/pkg/cryptox"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "parlorctl",
	Short:        "Operator tooling for the parlor identity service",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(initCmd)

	createAdminCmd.Flags().String("email", "", "email address for the administrator account")
	createAdminCmd.Flags().String("name", "Administrator", "display name for the administrator account")
	createAdminCmd.Flags().String("password", "", "password (generated when omitted)")
	_ = createAdminCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(createAdminCmd)
}

// openStore loads the service configuration and opens its database.
func openStore() (store.Store, app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, app.Config{}, err
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return nil, app.Config{}, fmt.Errorf("open database: %w", err)
	}
	return db, cfg, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Apply migrations and seed the role catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.ApplyMigrations(); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		roles := &service.RolesService{Store: db}
		if err := roles.EnsureSeeded(cmd.Context()); err != nil {
			return fmt.Errorf("seed roles: %w", err)
		}

		fmt.Println("database initialized")

		empty, err := db.Users().IsEmpty(cmd.Context())
		if err != nil {
			return err
		}
		if empty {
			fmt.Println("no accounts yet; run 'parlorctl create-admin' to add one")
		}
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")

		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		generated := password == ""
		if generated {
			password, err = cryptox.GeneratePassword()
			if err != nil {
				return fmt.Errorf("generate password: %w", err)
			}
		}

		// Registering with AdminEmail set to the same address routes the
		// account straight into the administrator role.
		users := &service.UserService{Store: db, AdminEmail: email}
		user, err := users.Register(cmd.Context(), email, name, password)
		if err != nil {
			if errors.Is(err, service.ErrDuplicateEmail) {
				return fmt.Errorf("an account with email %s already exists", email)
			}
			return err
		}

		// Operator-created accounts skip the mail loop.
		if err := users.Confirm(cmd.Context(), user.ID); err != nil {
			return fmt.Errorf("confirm account: %w", err)
		}

		fmt.Printf("administrator %s created (id %s)\n", user.Email, user.ID)
		if generated {
			fmt.Printf("generated password: %s\n", password)
		}
		return nil
	},
}
