package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/bugfiler/internal/history"
)

func newHistoryCmd(a *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently filed issues and attachments",
		Long: `Show what bugfiler has filed, newest first. Entries are kept in a local
database (history.path).

Examples:
  bugfiler history
  bugfiler history --limit 0    # everything`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			h, err := a.History(ctx)
			if err != nil {
				return err
			}
			entries, err := h.Recent(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				if entries == nil {
					entries = []history.Entry{}
				}
				return printJSON(out, entries)
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, subtleStyle.Render("Nothing filed yet."))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "WHEN\tKIND\tISSUE\tDETAIL")
			for _, e := range entries {
				detail := e.Summary
				if e.Kind == history.KindAttachment {
					detail = fmt.Sprintf("%s (%d bytes)", e.FileName, e.Size)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Kind, e.IssueKey, detail)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")

	return cmd
}
