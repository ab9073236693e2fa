package cmd

import (
	"fmt"
	"os"

	"github.com/Joelisking/projectx-client/internal/config"
	"github.com/spf13/cobra"
)

var current *app

var rootCmd = &cobra.Command{
	Use:           "marketctl",
	Short:         "marketctl talks to the campus marketplace API",
	Long:          `A command-line client for the campus marketplace. It keeps your session between runs and refreshes expired access tokens on its own.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), config.New(), cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("starting marketctl: %w", err)
		}
		current = a
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func execute() error {
	defer closeApp()
	return rootCmd.Execute()
}

// closeApp releases the app's connections whether or not the command failed.
func closeApp() {
	if current != nil {
		current.Close()
		current = nil
	}
}

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd, listingsCmd, requestCmd)
}
