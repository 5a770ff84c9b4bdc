// Package jira implements the bug tracker against the Jira REST API v3.
package jira

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	v3 "github.com/ctreminiom/go-atlassian/v2/jira/v3"
	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
	"github.com/randalmurphal/bugfiler/internal/settings"
)

// DefaultTimeout bounds every HTTP round trip when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// projectPageSize is the page size used when listing projects.
const projectPageSize = 50

// ClientConfig holds the configuration for connecting to a Jira instance.
type ClientConfig struct {
	// BaseURL is the Jira instance URL (e.g., "https://acme.atlassian.net").
	BaseURL string
	// Login is the user account for basic auth.
	Login string
	// Password is the password or API token for basic auth.
	Password string
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
	// UserAgent is sent with every request when set.
	UserAgent string
}

// Client wraps the go-atlassian Jira v3 client and implements bugtracker.Tracker.
type Client struct {
	jira *v3.Client
	cfg  ClientConfig
}

var _ bugtracker.Tracker = (*Client)(nil)

// NewClient creates a Jira client with basic auth.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}
	if cfg.Login == "" {
		return nil, fmt.Errorf("jira login is required")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("jira password is required")
	}

	base, err := settings.ValidateURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("jira base URL: %w", err)
	}
	cfg.BaseURL = base
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := v3.New(&http.Client{Timeout: cfg.Timeout}, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}

	client.Auth.SetBasicAuth(cfg.Login, cfg.Password)
	if cfg.UserAgent != "" {
		client.Auth.SetUserAgent(cfg.UserAgent)
	}

	return &Client{jira: client, cfg: cfg}, nil
}

// Connector returns a bugtracker.Connector that builds Clients with the
// given timeout and user agent.
func Connector(timeout time.Duration, userAgent string) bugtracker.Connector {
	return func(s settings.Settings) (bugtracker.Tracker, error) {
		c, err := NewClient(ClientConfig{
			BaseURL:   s.URL,
			Login:     s.Login,
			Password:  s.Password,
			Timeout:   timeout,
			UserAgent: userAgent,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// ListProjects pages through every project visible to the user.
func (c *Client) ListProjects(ctx context.Context) ([]bugtracker.Project, error) {
	var all []bugtracker.Project
	startAt := 0

	for {
		page, resp, err := c.jira.Project.Search(
			ctx,
			&models.ProjectSearchOptionsScheme{OrderBy: "key"},
			startAt,
			projectPageSize,
		)
		if err != nil {
			return nil, newAPIError("list projects", resp, err)
		}

		for _, p := range page.Values {
			all = append(all, convertProject(p))
		}

		if page.IsLast || len(page.Values) == 0 {
			break
		}
		startAt += len(page.Values)
	}

	return all, nil
}

// GetProject fetches one project with its issue types.
func (c *Client) GetProject(ctx context.Context, key string) (*bugtracker.Project, error) {
	p, resp, err := c.jira.Project.Get(ctx, key, []string{"issueTypes"})
	if err != nil {
		return nil, newAPIError("get project "+key, resp, err)
	}
	project := convertProject(p)
	return &project, nil
}

// ListPriorities returns the priorities defined on the server.
func (c *Client) ListPriorities(ctx context.Context) ([]bugtracker.Priority, error) {
	prios, resp, err := c.jira.Issue.Priority.Gets(ctx)
	if err != nil {
		return nil, newAPIError("list priorities", resp, err)
	}
	out := make([]bugtracker.Priority, 0, len(prios))
	for _, p := range prios {
		if p == nil {
			continue
		}
		out = append(out, bugtracker.Priority{ID: p.ID, Name: p.Name})
	}
	return out, nil
}

// CreateMeta returns creation metadata, fields included, for a project.
func (c *Client) CreateMeta(ctx context.Context, projectKey string) ([]bugtracker.MetaProject, error) {
	result, resp, err := c.jira.Issue.Metadata.Create(ctx, &models.IssueMetadataCreateOptions{
		ProjectKeys: []string{projectKey},
		Expand:      "projects.issuetypes.fields",
	})
	if err != nil {
		return nil, newAPIError("get create metadata", resp, err)
	}
	return parseCreateMeta(result), nil
}

// CreateIssue submits a new issue.
func (c *Client) CreateIssue(ctx context.Context, payload bugtracker.IssuePayload) (bugtracker.IssueRef, error) {
	issue, custom, err := buildIssue(payload)
	if err != nil {
		return bugtracker.IssueRef{}, err
	}

	created, resp, err := c.jira.Issue.Create(ctx, issue, custom)
	if err != nil {
		return bugtracker.IssueRef{}, newAPIError("create issue", resp, err)
	}
	return bugtracker.IssueRef{ID: created.ID, Key: created.Key, Self: created.Self}, nil
}

// AddAttachment uploads content to the issue named by target, an issue
// attachment endpoint such as .../rest/api/3/issue/10001/attachments.
func (c *Client) AddAttachment(ctx context.Context, target *url.URL, fileName string, content io.Reader) error {
	issue, err := issueFromAttachmentURI(target)
	if err != nil {
		return err
	}
	_, resp, err := c.jira.Issue.Attachment.Add(ctx, issue, fileName, content)
	if err != nil {
		return newAPIError("add attachment to "+issue, resp, err)
	}
	return nil
}

// issueFields are the fields requested when fetching an issue.
var issueFields = []string{
	"summary",
	"description",
	"issuetype",
	"status",
	"priority",
	"project",
	"labels",
	"components",
}

// GetIssue fetches a single issue by key.
func (c *Client) GetIssue(ctx context.Context, key string) (*bugtracker.Issue, error) {
	issue, resp, err := c.jira.Issue.Get(ctx, key, issueFields, nil)
	if err != nil {
		return nil, newAPIError("get issue "+key, resp, err)
	}
	converted := convertIssue(issue)
	return &converted, nil
}

// Myself verifies the credentials and returns the user's display name.
func (c *Client) Myself(ctx context.Context) (string, error) {
	user, resp, err := c.jira.MySelf.Details(ctx, nil)
	if err != nil {
		return "", newAPIError("auth check", resp, err)
	}
	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return c.cfg.Login, nil
}

// issueFromAttachmentURI extracts the issue ID or key from an attachment
// endpoint URI.
func issueFromAttachmentURI(target *url.URL) (string, error) {
	if target == nil {
		return "", fmt.Errorf("attachment URI is required")
	}
	parts := strings.Split(strings.Trim(target.Path, "/"), "/")
	n := len(parts)
	if n < 3 || parts[n-1] != "attachments" || parts[n-3] != "issue" || parts[n-2] == "" {
		return "", fmt.Errorf("not an issue attachment URI: %s", target.String())
	}
	return parts[n-2], nil
}

// buildIssue maps a payload to the go-atlassian creation request. Extra
// fields are sent as plain values; "labels" is split on commas.
// typedFields have dedicated IssuePayload members; a custom value would
// override them in the merged request body.
var typedFields = []string{"summary", "project", "issuetype", "description", "priority", "components"}

func buildIssue(payload bugtracker.IssuePayload) (*models.IssueScheme, *models.CustomFields, error) {
	fields := &models.IssueFieldsScheme{
		Summary:   payload.Summary,
		Project:   &models.ProjectScheme{Key: payload.ProjectKey},
		IssueType: &models.IssueTypeScheme{ID: payload.IssueType.ID},
	}
	if payload.Description != "" {
		fields.Description = TextToADF(payload.Description)
	}
	if payload.Priority != nil {
		fields.Priority = &models.PriorityScheme{ID: payload.Priority.ID}
	}
	for _, name := range payload.Components {
		fields.Components = append(fields.Components, &models.ComponentScheme{Name: name})
	}

	var custom *models.CustomFields
	for key, value := range payload.Fields {
		if value == "" {
			continue
		}
		if slices.Contains(typedFields, key) {
			return nil, nil, fmt.Errorf("field %q is set from the request, not as an extra field", key)
		}
		if key == "labels" {
			fields.Labels = splitList(value)
			continue
		}
		if custom == nil {
			custom = &models.CustomFields{}
		}
		if err := custom.Text(key, value); err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}
	}

	return &models.IssueScheme{Fields: fields}, custom, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func convertProject(p *models.ProjectScheme) bugtracker.Project {
	if p == nil {
		return bugtracker.Project{}
	}
	project := bugtracker.Project{ID: p.ID, Key: p.Key, Name: p.Name}
	for _, it := range p.IssueTypes {
		if it == nil {
			continue
		}
		project.IssueTypes = append(project.IssueTypes, bugtracker.IssueType{
			ID:      it.ID,
			Name:    it.Name,
			Subtask: it.Subtask,
		})
	}
	return project
}

// convertIssue maps a go-atlassian IssueScheme to a bugtracker.Issue.
func convertIssue(issue *models.IssueScheme) bugtracker.Issue {
	if issue == nil {
		return bugtracker.Issue{}
	}
	result := bugtracker.Issue{
		Ref: bugtracker.IssueRef{ID: issue.ID, Key: issue.Key, Self: issue.Self},
	}
	f := issue.Fields
	if f == nil {
		return result
	}

	result.Summary = f.Summary
	result.Description = ADFToText(f.Description)
	result.IssueType = safeIssueTypeName(f.IssueType)
	result.Status = safeStatusName(f.Status)
	result.Priority = safePriorityName(f.Priority)
	result.Project = safeProjectKey(f.Project)
	result.Labels = f.Labels
	for _, comp := range f.Components {
		if comp != nil && comp.Name != "" {
			result.Components = append(result.Components, comp.Name)
		}
	}
	return result
}

func safeIssueTypeName(it *models.IssueTypeScheme) string {
	if it == nil {
		return ""
	}
	return it.Name
}

func safeStatusName(s *models.StatusScheme) string {
	if s == nil {
		return ""
	}
	return s.Name
}

func safePriorityName(p *models.PriorityScheme) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func safeProjectKey(p *models.ProjectScheme) string {
	if p == nil {
		return ""
	}
	return p.Key
}
