package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Joelisking/projectx-client/internal/utils"
	"github.com/Joelisking/projectx-client/marketplace"
	"github.com/Joelisking/projectx-client/tokens"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		in := bufio.NewReader(cmd.InOrStdin())
		if email == "" {
			email = prompt(cmd.OutOrStdout(), in, "Enter email: ")
		}

		password, err := readPassword(cmd.OutOrStdout(), in, "Enter password: ")
		if err != nil {
			return err
		}

		user, err := current.market.Login(cmd.Context(), marketplace.Credentials{Email: email, Password: password})
		if err != nil {
			if msg := current.session.Snapshot().Error; msg != "" {
				return errors.New(msg)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s).\n", user.DisplayName(), user.Email)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		reg := marketplace.Registration{}
		reg.Email, _ = flags.GetString("email")
		reg.Username, _ = flags.GetString("username")
		reg.FirstName, _ = flags.GetString("first-name")
		reg.LastName, _ = flags.GetString("last-name")
		phone, _ := flags.GetString("phone")
		campus, _ := flags.GetString("campus-id")
		reg.PhoneNumber = utils.NonEmpty(phone)
		reg.CampusID = utils.NonEmpty(campus)

		if reg.Email == "" {
			reg.Email = prompt(out, in, "Enter email: ")
		}
		if reg.Username == "" {
			reg.Username = prompt(out, in, "Enter username: ")
		}

		var err error
		if reg.Password, err = readPassword(out, in, "Enter password: "); err != nil {
			return err
		}
		if reg.PasswordConfirm, err = readPassword(out, in, "Confirm password: "); err != nil {
			return err
		}
		if reg.Password != reg.PasswordConfirm {
			return errors.New("passwords do not match")
		}

		user, err := current.market.Register(cmd.Context(), reg)
		if err != nil {
			if msg := current.session.Snapshot().Error; msg != "" {
				return errors.New(msg)
			}
			return err
		}

		fmt.Fprintf(out, "Welcome, %s. You are logged in.\n", user.DisplayName())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !current.session.Snapshot().IsAuthenticated {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
			return nil
		}
		if err := current.market.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		s := current.session.Snapshot()
		if !s.IsAuthenticated {
			fmt.Fprintln(out, "Not logged in.")
			return nil
		}

		user, err := current.market.Me(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s <%s>\n", user.DisplayName(), user.Email)
		fmt.Fprintf(out, "  username: %s\n", user.Username)
		if user.Campus != "" {
			fmt.Fprintf(out, "  campus:   %s\n", user.Campus)
		}
		if exp, err := tokens.ExpiresAt(current.session.Snapshot().AccessToken); err == nil {
			fmt.Fprintf(out, "  token expires %s\n", exp.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().String("email", "", "account email")

	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("username", "", "username")
	registerCmd.Flags().String("first-name", "", "first name")
	registerCmd.Flags().String("last-name", "", "last name")
	registerCmd.Flags().String("phone", "", "phone number")
	registerCmd.Flags().String("campus-id", "", "campus id")
}

func prompt(out io.Writer, in *bufio.Reader, label string) string {
	fmt.Fprint(out, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

// readPassword hides input on a terminal and falls back to a plain line read
// when stdin is piped.
func readPassword(out io.Writer, in *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(out, in, label), nil
	}

	fmt.Fprint(out, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
