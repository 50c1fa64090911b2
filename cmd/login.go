package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"chatctl/internal"
	"github.com/spf13/cobra"
)

var (
	loginPassword    string
	registerFirst    string
	registerLast     string
	registerPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate against the platform",
	Long: `Authenticate against the platform and store the access token locally.

The password is read from --password or prompted on stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}

		password := loginPassword
		if password == "" {
			password, err = promptSecret("Password: ")
			if err != nil {
				return err
			}
		}

		role, err := app.api.Login(cmd.Context(), args[0], password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		msg := fmt.Sprintf("Logged in as %s", args[0])
		if role == internal.RoleAdmin {
			msg += " (admin)"
		}
		internal.PrintSuccess(msg)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}

		password := registerPassword
		if password == "" {
			password, err = promptSecret("Password: ")
			if err != nil {
				return err
			}
		}

		payload := internal.RegisterPayload{
			FirstName: registerFirst,
			LastName:  registerLast,
			Email:     args[0],
			Password:  password,
		}
		role, err := app.api.Register(cmd.Context(), payload)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		if role == internal.RoleNone && !app.identity.IsLoggedIn() {
			internal.PrintSuccess(fmt.Sprintf("Account created for %s (run `chatctl login` to sign in)", args[0]))
			return nil
		}
		internal.PrintSuccess(fmt.Sprintf("Account created, logged in as %s", args[0]))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.api.Logout(); err != nil {
			return err
		}
		internal.PrintSuccess("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the identity behind the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if !app.identity.IsLoggedIn() {
			fmt.Println("Not logged in")
			return nil
		}

		// The token is the local truth; the orchestrator view confirms the
		// credential is still accepted
		fmt.Printf("Email:     %s\n", app.identity.Email())
		fmt.Printf("Role:      %s\n", roleLabel(app.identity.Role()))
		fmt.Printf("Namespace: %s\n", app.identity.Namespace())

		if resp, err := app.api.WhoAmI(cmd.Context()); err != nil {
			internal.PrintWarning(fmt.Sprintf("server check failed: %v", err))
		} else if resp.Email != "" {
			fmt.Printf("Server:    %s (%s)\n", resp.Email, resp.Role)
		}
		return nil
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Password recovery",
}

var passwdForgotCmd = &cobra.Command{
	Use:   "forgot <email>",
	Short: "Request a password reset email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.api.ForgotPassword(cmd.Context(), args[0]); err != nil {
			return err
		}
		internal.PrintSuccess(fmt.Sprintf("Reset email requested for %s", args[0]))
		return nil
	},
}

var passwdResetCmd = &cobra.Command{
	Use:   "reset <token>",
	Short: "Redeem a reset token with a new password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		password, err := promptSecret("New password: ")
		if err != nil {
			return err
		}
		if err := app.api.ResetPassword(cmd.Context(), args[0], password); err != nil {
			return err
		}
		internal.PrintSuccess("Password updated")
		return nil
	},
}

func roleLabel(role internal.Role) string {
	if role == internal.RoleNone {
		return "(none)"
	}
	return string(role)
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("empty input")
	}
	return value, nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(passwdCmd)
	passwdCmd.AddCommand(passwdForgotCmd)
	passwdCmd.AddCommand(passwdResetCmd)

	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")
	registerCmd.Flags().StringVar(&registerFirst, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerLast, "last-name", "", "Last name")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "Password (prompted when omitted)")
}
