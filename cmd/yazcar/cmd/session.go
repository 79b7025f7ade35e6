package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/routing"
	"github.com/yazcar/yazcarfax/internal/service"
)

var (
	loginEmail    string
	loginPassword string
	loginRemember bool
	statusOutput  string
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Restore the saved session and show the landing screen",
	Long: `Check the saved session against the backend and land on the screen
for the signed-in role, or on the sign-in screen.

The check works offline when the profile is cached; an unreachable backend
starts the client signed out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, app *clientApp) error {
			status, err := app.manager.Launch(ctx)
			if err != nil {
				app.logger.Warn("launch completed with errors", "error", err)
			}
			if status.IsAuthenticated {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", status.User.Email, status.User.Role)
			}
			if errors.Is(err, routing.ErrRoutingFailure) {
				return err
			}
			return nil
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Long: `Sign in and land on the dashboard for your role.

The password is read from stdin when --password is not given.
With --remember=false the session lasts until the process exits.

Examples:
  yazcar login --email owner@example.com
  echo "$PASSWORD" | yazcar login --email owner@example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			var err error
			password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
		}
		return withClient(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, app *clientApp) error {
			res, err := app.manager.Login(ctx, loginEmail, password, loginRemember)
			if err != nil && res == nil {
				return errors.New(userMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", res.User.Email, res.User.Role)
			return err
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Long: `Sign out and clear the credential cache. The local session is cleared
even when the backend cannot be reached.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, app *clientApp) error {
			if err := app.manager.Logout(ctx); err != nil {
				if errors.Is(err, routing.ErrRoutingFailure) {
					return err
				}
				app.logger.Warn("backend sign-out failed, signed out locally", "error", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the authentication status",
	Long: `Run the launch-time check and print whether a session is active.

Output formats: text (default), json, yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), io.Discard, func(ctx context.Context, app *clientApp) error {
			status, err := app.gateway.CheckAuthStatus(ctx)
			if err != nil {
				return errors.New(userMessage(err))
			}
			return writeStatus(cmd.OutOrStdout(), statusOutput, status)
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in profile from the cache",
	Long:  `Print the cached profile without contacting the backend.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), io.Discard, func(ctx context.Context, app *clientApp) error {
			user, err := app.gateway.GetCurrentUser(ctx)
			if err != nil {
				return errors.New(userMessage(err))
			}
			if user == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n  role: %s\n  id:   %s\n", user.Name, user.Email, user.Role, user.ID)
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (read from stdin when empty)")
	loginCmd.Flags().BoolVar(&loginRemember, "remember", true, "keep the session across restarts")
	_ = loginCmd.MarkFlagRequired("email")

	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "output format: text, json or yaml")

	rootCmd.AddCommand(launchCmd, loginCmd, logoutCmd, statusCmd, whoamiCmd)
}

// readPassword reads one line from in, prompting on prompt.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprint(prompt, "Password: ")
		}
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// writeStatus renders status in the given format.
func writeStatus(w io.Writer, format string, status service.AuthStatus) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(status); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		if !status.IsAuthenticated {
			_, err := fmt.Fprintln(w, "Not signed in")
			return err
		}
		_, err := fmt.Fprintf(w, "Signed in as %s (%s)\n", status.User.Email, status.User.Role)
		return err
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// userMessage is the inline message shown for a gateway error.
func userMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return "Enter a valid email address and a password."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, auth.ErrProfileNotFound):
		return "Your account has no YazCar profile. Contact support."
	case errors.Is(err, auth.ErrRateLimited):
		return "Too many sign-in attempts. Try again in a minute."
	case errors.Is(err, auth.ErrNetwork):
		return "Could not reach YazCar. Check your connection and try again."
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "The request was cancelled."
	default:
		return err.Error()
	}
}
