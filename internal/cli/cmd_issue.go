package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// issueView is the displayed form of an issue.
type issueView struct {
	Key         string   `json:"key"`
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Project     string   `json:"project"`
	IssueType   string   `json:"issue_type"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority,omitempty"`
	Summary     string   `json:"summary"`
	Components  []string `json:"components,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Description string   `json:"description,omitempty"`
}

func newIssueCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "issue <issue-key>",
		Short: "Show an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issue, err := a.lookupIssue(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			view := issueView{
				Key:         issue.Ref.Key,
				ID:          issue.Ref.ID,
				URL:         issue.Ref.BrowseURL(a.holder.Load().URL),
				Project:     issue.Project,
				IssueType:   issue.IssueType,
				Status:      issue.Status,
				Priority:    issue.Priority,
				Summary:     issue.Summary,
				Components:  issue.Components,
				Labels:      issue.Labels,
				Description: issue.Description,
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, view)
			}

			_, _ = fmt.Fprintf(out, "%s %s\n", titleStyle.Render(view.Key), view.Summary)
			rows := []kv{
				{"Project", view.Project},
				{"Type", view.IssueType},
				{"Status", view.Status},
			}
			if view.Priority != "" {
				rows = append(rows, kv{"Priority", view.Priority})
			}
			if len(view.Components) > 0 {
				rows = append(rows, kv{"Components", strings.Join(view.Components, ", ")})
			}
			if len(view.Labels) > 0 {
				rows = append(rows, kv{"Labels", strings.Join(view.Labels, ", ")})
			}
			rows = append(rows, kv{"URL", view.URL})
			printKV(out, rows)
			if view.Description != "" {
				_, _ = fmt.Fprintf(out, "\n%s\n", view.Description)
			}
			return nil
		},
	}
}
