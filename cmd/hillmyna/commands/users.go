package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/hillmyna/internal/app"
	"github.com/codebuildervaibhav/hillmyna/internal/auth"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users and their voice profiles",
	}
	cmd.AddCommand(
		usersListCmd(),
		usersAddCmd(),
		usersRemoveCmd(),
		usersStatusCmd(),
		usersResetCmd(),
		usersImportCmd(),
		usersEnableCmd("enable", true),
		usersEnableCmd("disable", false),
	)
	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			users, err := w.Service.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "USERNAME", "NAME", "SURNAME", "ENABLED", "PROFILE", "CREATED")
			for _, u := range users {
				row(tw, u.Username, u.Name, u.Surname, u.Enabled, u.AzureID, u.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		}),
	}
}

func usersAddCmd() *cobra.Command {
	var nu auth.NewUser
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user and its identification profile",
		Args:  cobra.ExactArgs(1),
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			nu.Username = args[0]
			u, err := w.Service.CreateUser(cmd.Context(), nu)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s with profile %s\n", u.Username, u.AzureID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&nu.Name, "name", "", "first name")
	cmd.Flags().StringVar(&nu.Surname, "surname", "", "last name")
	return cmd
}

func usersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <username>",
		Short: "Delete a user and its identification profile",
		Args:  cobra.ExactArgs(1),
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			if err := w.Service.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		}),
	}
}

func usersStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <username>",
		Short: "Show a user and the enrollment state of its profile",
		Args:  cobra.ExactArgs(1),
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			st, err := w.Service.UserStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		}),
	}
}

func usersResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <username>",
		Short: "Discard every enrollment sample of a user",
		Args:  cobra.ExactArgs(1),
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			if err := w.Service.ResetEnrollments(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enrollments of %s reset\n", args[0])
			return nil
		}),
	}
}

func usersImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <users.json>",
		Short: "Import users from a JSON array of {azure_id, username, name, surname, status}",
		Args:  cobra.ExactArgs(1),
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			n, err := w.DB.ImportUsersJSON(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d users\n", n)
			return nil
		}),
	}
}

func usersEnableCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: fmt.Sprintf("Allow or refuse logins (%s)", use),
		Args:  cobra.ExactArgs(1),
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			if err := w.Service.SetUserEnabled(cmd.Context(), args[0], enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: enabled=%t\n", args[0], enabled)
			return nil
		}),
	}
}
