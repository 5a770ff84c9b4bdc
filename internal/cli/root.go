// Package cli implements the bugfiler command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// noAppAnnotation marks commands that run without loading config or settings.
const noAppAnnotation = "bugfiler/no-app"

// NewRootCmd builds the command tree around a.
func NewRootCmd(a *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bugfiler",
		Short: "File bugs in JIRA from the command line",
		Long: `bugfiler files issues in a JIRA instance and attaches files to them.

The JIRA server URL, login and password are kept in a settings file
(~/.config/bugfiler/settings.yaml by default, mode 0600) or, with
credentials.backend: keyring, the password goes to the OS keyring. Where
no OS keyring exists an encrypted file is used; set BUGFILER_KEYRING_PASSWORD
to choose its passphrase.

Quick start:
  bugfiler settings set --url https://mycompany.atlassian.net --login me --password-stdin
  bugfiler settings check
  bugfiler file --project PROJ --type Bug --summary "Crash on save" --attach "logs/*.log"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[noAppAnnotation] == "true" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.config/bugfiler/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "output as JSON")

	rootCmd.AddCommand(newSettingsCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newProjectsCmd(a))
	rootCmd.AddCommand(newIssueTypesCmd(a))
	rootCmd.AddCommand(newPrioritiesCmd(a))
	rootCmd.AddCommand(newFieldsCmd(a))
	rootCmd.AddCommand(newFileCmd(a))
	rootCmd.AddCommand(newAttachCmd(a))
	rootCmd.AddCommand(newIssueCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	a := NewApp()
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd(a)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(os.Stderr, err, a.verbose)
		return ExitCode(err)
	}
	return 0
}

// verboseLog prints a progress line to stderr in verbose mode.
func (a *App) verboseLog(format string, args ...any) {
	if a.verbose {
		_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
