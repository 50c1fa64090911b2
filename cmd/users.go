package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"chatctl/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireAdmin(); err != nil {
			return err
		}

		users, err := app.api.Users(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		if len(users) == 0 {
			fmt.Println(headerStyle.Render("👤 No users"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("👤 %d user(s)", len(users))))
		fmt.Println()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)
		_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Email")+"\t"+titleStyle.Render("Name")+"\t"+titleStyle.Render("Role")+"\t"+titleStyle.Render("Active")+"\t")
		_, _ = fmt.Fprintln(w, strings.Repeat("─", 90))
		for _, u := range users {
			name := strings.TrimSpace(u.FirstName + " " + u.LastName)
			if name == "" {
				name = "—"
			}
			active := "yes"
			if !u.Active {
				active = dateStyle.Render("no")
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
				idStyle.Render(strconv.FormatInt(u.ID, 10)), u.Email, name, u.Role, active)
		}
		_ = w.Flush()
		return nil
	},
}

var usersRoleCmd = &cobra.Command{
	Use:   "role <id> <USER|ADMIN>",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireAdmin(); err != nil {
			return err
		}
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}

		var role internal.Role
		switch strings.ToUpper(args[1]) {
		case "USER":
			role = internal.RoleUser
		case "ADMIN":
			role = internal.RoleAdmin
		default:
			return fmt.Errorf("unknown role %q (expected USER or ADMIN)", args[1])
		}

		if err := app.api.SetRole(cmd.Context(), id, role); err != nil {
			return fmt.Errorf("failed to set role: %w", err)
		}
		internal.PrintSuccess(fmt.Sprintf("User %d is now %s", id, role))
		return nil
	},
}

var usersActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Enable a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserActive(cmd, args[0], true)
	},
}

var usersDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Disable a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserActive(cmd, args[0], false)
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireAdmin(); err != nil {
			return err
		}
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		if err := app.api.DeleteUser(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete user %d: %w", id, err)
		}
		internal.PrintSuccess(fmt.Sprintf("Deleted user %d", id))
		return nil
	},
}

func setUserActive(cmd *cobra.Command, rawID string, active bool) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.requireAdmin(); err != nil {
		return err
	}
	id, err := parseUserID(rawID)
	if err != nil {
		return err
	}
	if err := app.api.SetUserActive(cmd.Context(), id, active); err != nil {
		return fmt.Errorf("failed to update user %d: %w", id, err)
	}
	state := "activated"
	if !active {
		state = "deactivated"
	}
	internal.PrintSuccess(fmt.Sprintf("User %d %s", id, state))
	return nil
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersRoleCmd)
	usersCmd.AddCommand(usersActivateCmd)
	usersCmd.AddCommand(usersDeactivateCmd)
	usersCmd.AddCommand(usersDeleteCmd)
}
