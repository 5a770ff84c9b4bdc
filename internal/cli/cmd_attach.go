package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
)

func newAttachCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <issue-key> <file|glob>...",
		Short: "Attach files to an existing issue",
		Long: `Attach one or more files to an existing issue. Globs are expanded
(** supported) and every match must be a regular file.

Examples:
  bugfiler attach PROJ-123 crash.log
  bugfiler attach PROJ-123 "screenshots/*.png" build/report.html`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			files, err := expandAttachments(args[1:])
			if err != nil {
				return err
			}

			issue, err := a.lookupIssue(ctx, args[0])
			if err != nil {
				return err
			}

			uploads := a.uploadAttachments(ctx, issue.Ref, files)
			out := cmd.OutOrStdout()
			if a.jsonOut {
				if err := printJSON(out, map[string]any{"key": issue.Ref.Key, "attachments": uploads}); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintln(out, titleStyle.Render(issue.Ref.Key))
				printUploads(out, uploads)
			}

			if n := failedUploads(uploads); n > 0 {
				return bferrors.ErrTransport("add attachment", fmt.Errorf("%d of %d attachments failed", n, len(uploads)))
			}
			return nil
		},
	}
}

// lookupIssue fetches an issue, reporting a connection problem before a
// missing issue.
func (a *App) lookupIssue(ctx context.Context, key string) (*bugtracker.Issue, error) {
	if h := a.facade.Handle(); !h.OK() {
		return nil, resultError(h.Message(), h.Err)
	}
	issue := a.facade.GetIssue(ctx, key)
	if issue == nil {
		return nil, bferrors.ErrNotFound("issue", key)
	}
	return issue, nil
}
