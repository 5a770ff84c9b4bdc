package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
	"github.com/randalmurphal/bugfiler/internal/settings"
)

// passwordEnvVar supplies the password to `settings set` without a prompt.
const passwordEnvVar = "BUGFILER_JIRA_PASSWORD"

func newSettingsCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View and edit the JIRA connection settings",
		Long: `View and edit the JIRA server URL, login and password.

Any change drops the current connection; the next command reconnects
with the new values.

Subcommands:
  show    Show the settings (password redacted)
  set     Set one or more fields
  edit    Edit all fields in a form
  check   Verify the settings against the server`,
	}

	cmd.AddCommand(newSettingsShowCmd(a))
	cmd.AddCommand(newSettingsSetCmd(a))
	cmd.AddCommand(newSettingsEditCmd(a))
	cmd.AddCommand(newSettingsCheckCmd(a))

	return cmd
}

// settingsView is the displayed form of the settings.
type settingsView struct {
	URL      string `json:"url" yaml:"url"`
	Login    string `json:"login" yaml:"login"`
	Password string `json:"password" yaml:"password"`
	Complete bool   `json:"complete" yaml:"complete"`
	Path     string `json:"path" yaml:"path"`
	Backend  string `json:"credentials_backend" yaml:"credentials_backend"`
}

func newSettingsShowCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the settings with the password redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.holder.Load()
			r := s.Redacted()
			view := settingsView{
				URL:      r.URL,
				Login:    r.Login,
				Password: r.Password,
				Complete: s.Complete(),
				Path:     a.cfg.SettingsFile,
				Backend:  a.cfg.Credentials.Backend,
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, view)
			}

			// Unset fields show the hint a blank form field would show.
			form := settings.FormValues(a.store)
			display := func(key, value string) string {
				if value == "" {
					return subtleStyle.Render(form[key])
				}
				return value
			}
			printKV(out, []kv{
				{fieldLabel(settings.URLLabel), display(settings.KeyURL, r.URL)},
				{fieldLabel(settings.LoginLabel), display(settings.KeyLogin, r.Login)},
				{fieldLabel(settings.PasswordLabel), display(settings.KeyPassword, r.Password)},
			})
			if !view.Complete {
				_, _ = fmt.Fprintln(out, warnStyle.Render("\nSettings are incomplete; bugs cannot be filed until all fields are set."))
			}
			return nil
		},
	}
}

func newSettingsSetCmd(a *App) *cobra.Command {
	var (
		url           string
		login         string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the server URL, login or password",
		Long: `Set one or more connection settings. Only the given fields change.
An empty value clears a field.

The password can come from --password, from stdin with --password-stdin
(not echoed on a terminal), or from the ` + passwordEnvVar + ` environment variable.

Examples:
  bugfiler settings set --url https://mycompany.atlassian.net
  bugfiler settings set --login me --password-stdin
  echo "$TOKEN" | bugfiler settings set --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]string)

			if cmd.Flags().Changed("url") {
				if url != "" {
					normalized, err := settings.ValidateURL(url)
					if err != nil {
						return bferrors.ErrInvalidURL(url).WithCause(err)
					}
					url = normalized
				}
				values[settings.KeyURL] = url
			}
			if cmd.Flags().Changed("login") {
				values[settings.KeyLogin] = login
			}

			switch {
			case passwordStdin:
				pw, err := readPassword(a.stdin, a.terminal != nil && a.terminal())
				if err != nil {
					return err
				}
				values[settings.KeyPassword] = pw
			case cmd.Flags().Changed("password"):
				values[settings.KeyPassword] = password
			default:
				if pw := resolveString("", passwordEnvVar, ""); pw != "" {
					values[settings.KeyPassword] = pw
				}
			}

			if len(values) == 0 {
				return bferrors.ErrValidation("nothing to set: use --url, --login, --password or --password-stdin")
			}

			changed, err := a.applySettings(values)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, map[string]any{"changed": changed})
			}
			if len(changed) == 0 {
				_, _ = fmt.Fprintln(out, subtleStyle.Render("No changes."))
				return nil
			}
			for _, key := range changed {
				_, _ = fmt.Fprintf(out, "%s %s\n", successStyle.Render("Updated"), key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "JIRA server URL (e.g., https://mycompany.atlassian.net)")
	cmd.Flags().StringVar(&login, "login", "", "JIRA user account (not an email)")
	cmd.Flags().StringVar(&password, "password", "", "password or API token (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	return cmd
}

// applySettings writes values through the editor in form order and returns
// the keys that changed.
func (a *App) applySettings(values map[string]string) ([]string, error) {
	var changed []string
	for _, key := range settings.Keys {
		value, ok := values[key]
		if !ok {
			continue
		}
		did, err := a.editor.Set(key, value)
		if err != nil {
			return changed, bferrors.Wrap(err, "save settings")
		}
		if did {
			changed = append(changed, key)
		}
	}
	return changed, nil
}

func newSettingsEditCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the settings in an interactive form",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.interactive() {
				return bferrors.ErrValidation("settings edit needs a terminal; use 'bugfiler settings set'")
			}

			current := a.holder.Load()
			login, password, url := current.Login, current.Password, current.URL

			err := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title(settings.LoginLabel).
						Description(settings.LoginDescription).
						Placeholder(settings.LoginPlaceholder).
						Value(&login),
					huh.NewInput().
						Title(settings.PasswordLabel).
						Description(settings.PasswordDescription).
						EchoMode(huh.EchoModePassword).
						Value(&password),
					huh.NewInput().
						Title(settings.URLLabel).
						Description(settings.URLDescription).
						Placeholder(settings.URLPlaceholder).
						Value(&url).
						Validate(func(s string) error {
							if s == "" || s == settings.URLPlaceholder {
								return nil
							}
							_, err := settings.ValidateURL(s)
							return err
						}),
				),
			).Run()
			if err != nil {
				return err
			}

			if url != "" && url != settings.URLPlaceholder {
				normalized, err := settings.ValidateURL(url)
				if err != nil {
					return bferrors.ErrInvalidURL(url).WithCause(err)
				}
				url = normalized
			}
			err = a.editor.StoreValues(map[string]string{
				settings.KeyLogin:    login,
				settings.KeyPassword: password,
				settings.KeyURL:      url,
			})
			if err != nil {
				return bferrors.Wrap(err, "save settings")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Saved."))
			return nil
		},
	}
}

func newSettingsCheckCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Connect to the server and verify the credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.facade.CheckConnection(cmd.Context())
			a.verboseLog("%s: connection %s", a.facade.Name(), a.facade.State())
			if !res.OK() {
				return resultError(res.Message(), res.Err)
			}

			out := cmd.OutOrStdout()
			url := a.holder.Load().URL
			if a.jsonOut {
				return printJSON(out, map[string]string{"url": url, "user": res.Value})
			}
			_, _ = fmt.Fprintf(out, "%s Connected to %s as %s\n", successStyle.Render("OK"), url, res.Value)
			return nil
		},
	}
}

// resolveString resolves a value from flag, env var, or config (in priority order).
func resolveString(flag, envVar, configVal string) string {
	if flag != "" {
		return flag
	}
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}
	return configVal
}

func fieldLabel(label string) string {
	return strings.TrimSuffix(label, ":")
}
