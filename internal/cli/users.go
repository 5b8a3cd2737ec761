package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"repoctl/internal/auth"
	"repoctl/internal/storage"
)

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Management commands for users",
	}
	cmd.AddCommand(
		newUsersListCmd(app),
		newUsersCreateCmd(app),
		newUsersTokenCmd(app),
	)
	return cmd
}

func newUsersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := app.Store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "id\temail\tactive\tconfirmed")
			for _, u := range users {
				active := "NO"
				if u.Active {
					active = "YES"
				}
				confirmed := ""
				if u.ConfirmedAt != nil {
					confirmed = u.ConfirmedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Email, active, confirmed)
			}
			return w.Flush()
		},
	}
}

func newUsersCreateCmd(app *App) *cobra.Command {
	var email, password string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if _, err := app.Store.GetUserByEmail(ctx, email); err == nil {
				return fmt.Errorf("user with email '%s' already exists", email)
			} else if !errors.Is(err, storage.ErrNoRows) {
				return err
			}

			if password == "" {
				entered, err := promptPassword()
				if err != nil {
					return err
				}
				password = entered
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			if err := app.Store.CreateUser(ctx, email, hash, !inactive); err != nil {
				return err
			}

			app.Printer().Success("user '%s' created", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address of the new user")
	_ = cmd.MarkFlagRequired("email")
	cmd.Flags().StringVar(&password, "password", "", "password, prompted for when omitted")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the user in inactive state")
	return cmd
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available, provide --password")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if len(password) == 0 {
		return "", errors.New("empty password")
	}
	return string(password), nil
}

func newUsersTokenCmd(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for a registered user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.Store.GetUserByEmail(cmd.Context(), email)
			if errors.Is(err, storage.ErrNoRows) {
				return fmt.Errorf("user with email '%s' not found", email)
			}
			if err != nil {
				return err
			}
			if !user.Active {
				return fmt.Errorf("user with email '%s' is inactive", email)
			}

			token, err := auth.GenerateToken(user.Email, []byte(app.Config.SecretKey), app.Config.TokenValidity)
			if err != nil {
				return err
			}

			fmt.Fprintln(app.Out, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address of the token holder")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRolesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Management commands for roles",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List existing roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := app.Store.ListRoles(cmd.Context())
			if err != nil {
				return err
			}
			for index, name := range names {
				app.Printer().Alternate(index, name)
			}
			return nil
		},
	}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a new role",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exists, err := app.Store.RoleExists(ctx, name)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("role '%s' already exists", name)
			}
			if err := app.Store.CreateRole(ctx, name); err != nil {
				return err
			}
			app.Printer().Success("role '%s' created", name)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "name of the new role")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(list, create)
	return cmd
}
