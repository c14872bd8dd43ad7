package main

import (
	"context"
	"errors"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/brizzai/blogctl/internal/session"
)

// passwordEnv is read when --password is not given
const passwordEnv = "BLOGCTL_PASSWORD"

var errNotLoggedIn = errors.New("not logged in, run blogctl login first")

func passwordFlag(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return "", errors.New("a password is required, pass --password or set " + passwordEnv)
	}
	return password, nil
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			password, err := passwordFlag(cmd)
			if err != nil {
				return err
			}
			reg := session.Registration{Password: password, PasswordConfirm: password}
			reg.Username, _ = cmd.Flags().GetString("username")
			reg.Email, _ = cmd.Flags().GetString("email")
			reg.FirstName, _ = cmd.Flags().GetString("first-name")
			reg.LastName, _ = cmd.Flags().GetString("last-name")
			if confirm, _ := cmd.Flags().GetString("password-confirm"); confirm != "" {
				reg.PasswordConfirm = confirm
			}

			user, err := a.session.Register(ctx, reg)
			if err != nil {
				return describeError(err)
			}
			pterm.Success.Printfln("Registered and logged in as %s", user.DisplayName())
			return nil
		}),
	}
	cmd.Flags().String("username", "", "Username")
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("password", "", "Password")
	cmd.Flags().String("password-confirm", "", "Password confirmation, defaults to --password")
	cmd.Flags().String("first-name", "", "First name")
	cmd.Flags().String("last-name", "", "Last name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			password, err := passwordFlag(cmd)
			if err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")

			user, err := a.session.Login(ctx, email, password)
			if err != nil {
				return describeError(err)
			}
			pterm.Success.Printfln("Logged in as %s", pterm.LightGreen(user.DisplayName()))
			return nil
		}),
	}
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the session",
		RunE: run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			a.session.Logout(ctx)
			pterm.Success.Println("Logged out")
			return nil
		}),
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			user := a.session.CurrentUser(ctx)
			if user == nil {
				return errNotLoggedIn
			}
			return printUser(cmd, user)
		}),
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		RunE: run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			if err := a.session.Refresh(ctx); err != nil {
				if session.IsAuthError(err) {
					pterm.Warning.Println("Session ended, log in again")
				}
				return err
			}
			pterm.Success.Println("Access token refreshed")
			return nil
		}),
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Describe the stored session without contacting the API",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			state, err := a.session.State(ctx)
			if err != nil {
				return err
			}
			status := struct {
				State  session.State `json:"state"`
				UserID string        `json:"user_id,omitempty"`
			}{State: state}
			if user := a.session.UserFromToken(ctx); user != nil {
				status.UserID = user.ID.String()
			}

			if wantJSON(cmd) {
				return printJSON(cmd, status)
			}
			switch state {
			case session.StateAuthenticated:
				pterm.Success.Printfln("Authenticated as user %s", status.UserID)
			case session.StateStale:
				pterm.Warning.Println("Access token expired, it will be refreshed on the next call")
			default:
				pterm.Info.Println("Not logged in")
			}
			return nil
		}),
	}
}
