package cli

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
)

// Fields the file command fills from its own flags; they are never asked
// for as extra fields.
var builtinFields = []string{"summary", "project", "issuetype"}

type fileOptions struct {
	project     string
	issueType   string
	priority    string
	summary     string
	description string
	component   string
	fields      []string
	attach      []string
	attachLog   bool
}

// fileOutput is the JSON result of the file command.
type fileOutput struct {
	Key         string         `json:"key"`
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Attachments []uploadResult `json:"attachments,omitempty"`
}

func newFileCmd(a *App) *cobra.Command {
	var opts fileOptions

	cmd := &cobra.Command{
		Use:   "file",
		Short: "File a new issue",
		Long: `File a new issue and optionally attach files to it.

Project, issue type, priority and component fall back to the defaults.*
config keys. On a terminal, anything still missing is asked for, including
fields the project requires; otherwise missing values are an error.

A priority the server does not know is dropped with a warning; the issue
is still filed. So is a failed lookup of the required fields.

--field takes any field id except those with their own flag (summary,
description, priority, project, issuetype). Values must not be empty.

Examples:
  bugfiler file --project PROJ --type Bug --summary "Crash on save"
  bugfiler file --summary "Timeout" --field labels=flaky,ci --attach "logs/**/*.log"
  bugfiler file --summary "Bad export" --attach-log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.fileIssue(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.project, "project", "p", "", "project key (default: defaults.project)")
	f.StringVarP(&opts.issueType, "type", "t", "", "issue type name (default: defaults.issue_type)")
	f.StringVar(&opts.priority, "priority", "", "priority name (default: defaults.priority)")
	f.StringVarP(&opts.summary, "summary", "s", "", "one-line summary")
	f.StringVarP(&opts.description, "description", "d", "", "description text")
	f.StringVar(&opts.component, "component", "", "component name (default: defaults.component)")
	f.StringArrayVarP(&opts.fields, "field", "f", nil, "extra field as key=value (repeatable)")
	f.StringArrayVarP(&opts.attach, "attach", "a", nil, "file or glob to attach (repeatable, ** supported)")
	f.BoolVar(&opts.attachLog, "attach-log", false, "attach the configured log file")

	return cmd
}

func (a *App) fileIssue(cmd *cobra.Command, opts fileOptions) error {
	ctx := cmd.Context()
	defaults := a.cfg.Defaults

	// Fail before any prompt when filing cannot succeed.
	if !a.facade.SettingsComplete() {
		return bferrors.ErrSettingsIncomplete()
	}

	extra, err := parseFields(opts.fields)
	if err != nil {
		return err
	}
	if component := firstNonEmpty(opts.component, defaults.Component); component != "" {
		if _, ok := extra["components"]; !ok {
			extra["components"] = component
		}
	}

	req := bugtracker.IssueRequest{
		ProjectKey:  firstNonEmpty(opts.project, defaults.Project),
		IssueType:   firstNonEmpty(opts.issueType, defaults.IssueType),
		Priority:    firstNonEmpty(opts.priority, defaults.Priority),
		Summary:     strings.TrimSpace(opts.summary),
		Description: opts.description,
		ExtraFields: extra,
	}

	// Resolve attachments before anything is created.
	files, err := a.attachmentFiles(opts)
	if err != nil {
		return err
	}

	if err := a.completeRequest(ctx, &req); err != nil {
		return err
	}
	if err := a.completeRequiredFields(ctx, &req); err != nil {
		return err
	}

	a.verboseLog("Filing %s in %s", req.IssueType, req.ProjectKey)
	res := a.facade.CreateIssue(ctx, req)
	if !res.OK() {
		return resultError(res.Message(), res.Err)
	}
	ref := res.Value
	serverURL := a.holder.Load().URL

	if h, err := a.History(ctx); err != nil {
		a.logger.Warn("open history", "error", err)
	} else if _, err := h.RecordIssue(ctx, serverURL, req, ref); err != nil {
		a.logger.Warn("record issue", "key", ref.Key, "error", err)
	}

	uploads := a.uploadAttachments(ctx, ref, files)

	out := cmd.OutOrStdout()
	browse := ref.BrowseURL(serverURL)
	if a.jsonOut {
		if err := printJSON(out, fileOutput{Key: ref.Key, ID: ref.ID, URL: browse, Attachments: uploads}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(out, "%s %s %s\n", successStyle.Render("Created"), titleStyle.Render(ref.Key), subtleStyle.Render(browse))
		printUploads(out, uploads)
	}

	if n := failedUploads(uploads); n > 0 {
		return bferrors.ErrTransport("add attachment", fmt.Errorf("%d of %d attachments failed", n, len(uploads)))
	}
	return nil
}

// attachmentFiles expands --attach and adds the log file for --attach-log.
func (a *App) attachmentFiles(opts fileOptions) ([]string, error) {
	var files []string
	if len(opts.attach) > 0 {
		expanded, err := expandAttachments(opts.attach)
		if err != nil {
			return nil, err
		}
		files = expanded
	}
	if opts.attachLog {
		if a.cfg.Log.File == "" {
			return nil, bferrors.ErrValidation("--attach-log needs log.file to be configured")
		}
		if !slices.Contains(files, a.cfg.Log.File) {
			files = append(files, a.cfg.Log.File)
		}
	}
	return files, nil
}

// completeRequest fills project, issue type, priority, summary and
// description, prompting on a terminal.
func (a *App) completeRequest(ctx context.Context, req *bugtracker.IssueRequest) error {
	if !a.interactive() {
		var missing []string
		if req.ProjectKey == "" {
			missing = append(missing, "--project")
		}
		if req.IssueType == "" {
			missing = append(missing, "--type")
		}
		if req.Summary == "" {
			missing = append(missing, "--summary")
		}
		if len(missing) > 0 {
			return bferrors.ErrValidation("missing " + strings.Join(missing, ", "))
		}
		return nil
	}

	var err error
	if req.ProjectKey == "" {
		projects := a.facade.ListProjects(ctx).Value
		if len(projects) > 0 {
			req.ProjectKey, err = selectOne("Project", projects, false)
		} else {
			req.ProjectKey, err = inputLine("Project", "Project key, e.g. PROJ", true)
		}
		if err != nil {
			return err
		}
	}
	if req.IssueType == "" {
		types := a.facade.ListIssueTypes(ctx, req.ProjectKey)
		if !types.OK() {
			return resultError(types.Message(), types.Err)
		}
		if req.IssueType, err = selectOne("Issue type", types.Value, false); err != nil {
			return err
		}
	}
	if req.Priority == "" {
		if prios := a.facade.ListPriorities(ctx); prios.OK() && len(prios.Value) > 0 {
			if req.Priority, err = selectOne("Priority", prios.Value, true); err != nil {
				return err
			}
		}
	}
	if req.Summary == "" {
		if req.Summary, err = inputLine("Summary", "One line describing the problem", true); err != nil {
			return err
		}
	}
	if req.Description == "" {
		if req.Description, err = inputText("Description"); err != nil {
			return err
		}
	}
	return nil
}

// completeRequiredFields makes sure every field the project requires for
// the issue type has a value. A failed lookup is only logged.
func (a *App) completeRequiredFields(ctx context.Context, req *bugtracker.IssueRequest) error {
	res := a.facade.RequiredFields(ctx, req.ProjectKey, req.IssueType)
	if !res.OK() {
		// The server still rejects the issue if something is missing.
		a.logger.Warn("required fields unavailable", "project", req.ProjectKey, "type", req.IssueType, "error", res.Message())
		a.verboseLog("Could not look up required fields: %s", res.Message())
		return nil
	}

	missing := missingFields(res.Value, *req)
	if len(missing) == 0 {
		return nil
	}
	if !a.interactive() {
		keys := make([]string, 0, len(missing))
		for _, f := range missing {
			keys = append(keys, f.Key)
		}
		return bferrors.ErrValidation(fmt.Sprintf(
			"missing required fields: %s (set them with --field key=value)", strings.Join(keys, ", ")))
	}

	for _, field := range missing {
		value, err := promptField(field)
		if err != nil {
			return err
		}
		switch field.Key {
		case "description":
			req.Description = value
		case "priority":
			req.Priority = value
		default:
			req.ExtraFields[field.Key] = value
		}
	}
	return nil
}

// missingFields returns, sorted by key, the required fields req leaves
// unset. Fields the server defaults are not missing.
func missingFields(required bugtracker.RequiredFieldSet, req bugtracker.IssueRequest) []bugtracker.FieldInfo {
	var missing []bugtracker.FieldInfo
	for key, field := range required {
		if field.HasDefault || slices.Contains(builtinFields, key) {
			continue
		}
		if key == "description" && req.Description != "" {
			continue
		}
		if key == "priority" && req.Priority != "" {
			continue
		}
		if _, ok := req.ExtraFields[key]; ok {
			continue
		}
		if field.Key == "" {
			field.Key = key
		}
		missing = append(missing, field)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Key < missing[j].Key })
	return missing
}

// flagFields maps the fields with a dedicated flag to that flag. They
// cannot be given with --field.
var flagFields = map[string]string{
	"summary":     "--summary",
	"description": "--description",
	"priority":    "--priority",
	"project":     "--project",
	"issuetype":   "--type",
}

// parseFields parses key=value pairs. Only the first "=" separates and the
// value must not be empty.
func parseFields(pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, bferrors.ErrValidation(fmt.Sprintf("bad field %q: expected key=value", pair))
		}
		if flag, reserved := flagFields[strings.ToLower(key)]; reserved {
			return nil, bferrors.ErrValidation(fmt.Sprintf("field %q: use %s instead", key, flag))
		}
		if value == "" {
			return nil, bferrors.ErrValidation(fmt.Sprintf("field %q has no value", key))
		}
		fields[key] = value
	}
	return fields, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
