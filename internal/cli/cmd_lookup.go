package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
)

func newProjectsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List project keys",
		Long: `List the keys of the projects visible to the configured account.

An unreachable server or incomplete settings print an empty list; run
'bugfiler settings check' to see why.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys := a.facade.ListProjects(cmd.Context()).Value
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, keys)
			}
			printList(out, keys, "No projects.")
			return nil
		},
	}
}

func newIssueTypesCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "issue-types <project>",
		Short: "List the issue types of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.facade.ListIssueTypes(cmd.Context(), args[0])
			if !res.OK() {
				return resultError(res.Message(), res.Err)
			}
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, res.Value)
			}
			printList(out, res.Value, "No issue types.")
			return nil
		},
	}
}

func newPrioritiesCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "priorities",
		Short: "List issue priorities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := a.facade.ListPriorities(cmd.Context())
			if !res.OK() {
				return resultError(res.Message(), res.Err)
			}
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, res.Value)
			}
			printList(out, res.Value, "No priorities.")
			return nil
		},
	}
}

// fieldView is the displayed form of a required field.
type fieldView struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	Schema        string   `json:"schema,omitempty"`
	HasDefault    bool     `json:"has_default"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

func newFieldsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <project> <issue-type>",
		Short: "List the fields required to create an issue",
		Long: `List the fields that must be set when creating an issue of the given
type in the given project. Fields the server fills by default are marked.

Example:
  bugfiler fields PROJ Bug`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.facade.RequiredFields(cmd.Context(), args[0], args[1])
			if !res.OK() {
				return resultError(res.Message(), res.Err)
			}

			views := sortedFields(res.Value)
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, views)
			}
			if len(views) == 0 {
				_, _ = fmt.Fprintln(out, subtleStyle.Render("No required fields."))
				return nil
			}
			rows := make([]kv, 0, len(views))
			for _, v := range views {
				desc := v.Name
				if v.Schema != "" {
					desc += subtleStyle.Render(" (" + v.Schema + ")")
				}
				if v.HasDefault {
					desc += subtleStyle.Render(" [default]")
				}
				rows = append(rows, kv{key: v.Key, value: desc})
			}
			printKV(out, rows)
			return nil
		},
	}
}

func sortedFields(set bugtracker.RequiredFieldSet) []fieldView {
	keys := set.Keys()
	sort.Strings(keys)
	views := make([]fieldView, 0, len(keys))
	for _, k := range keys {
		f := set[k]
		views = append(views, fieldView{
			Key:           k,
			Name:          f.Name,
			Schema:        f.Schema,
			HasDefault:    f.HasDefault,
			AllowedValues: f.AllowedValues,
		})
	}
	return views
}
