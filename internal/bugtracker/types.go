// Package bugtracker is the bug tracker client facade: it owns the tracker
// connection built from the current settings, turns UI-level requests into
// tracker calls, and normalizes every outcome into a Result.
package bugtracker

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/randalmurphal/bugfiler/internal/settings"
)

// Tracker is the remote bug tracker. Every method is one blocking round trip.
type Tracker interface {
	// ListProjects returns every visible project.
	ListProjects(ctx context.Context) ([]Project, error)
	// GetProject returns one project with its issue types.
	GetProject(ctx context.Context, key string) (*Project, error)
	// ListPriorities returns the priorities defined on the server.
	ListPriorities(ctx context.Context) ([]Priority, error)
	// CreateMeta returns issue creation metadata, including fields, for a project.
	CreateMeta(ctx context.Context, projectKey string) ([]MetaProject, error)
	// CreateIssue submits a new issue.
	CreateIssue(ctx context.Context, payload IssuePayload) (IssueRef, error)
	// AddAttachment uploads content to an issue attachment endpoint.
	AddAttachment(ctx context.Context, target *url.URL, fileName string, content io.Reader) error
	// GetIssue fetches a single issue by key.
	GetIssue(ctx context.Context, key string) (*Issue, error)
	// Myself returns the display name of the authenticated user.
	Myself(ctx context.Context) (string, error)
}

// Connector builds a Tracker bound to complete settings.
type Connector func(s settings.Settings) (Tracker, error)

// SettingsSource yields the settings current at call time.
type SettingsSource interface {
	Load() settings.Settings
}

// Project is a tracker project.
type Project struct {
	ID         string
	Key        string
	Name       string
	IssueTypes []IssueType
}

// IssueType is a tracker issue type. ID is the opaque value issue creation needs.
type IssueType struct {
	ID      string
	Name    string
	Subtask bool
}

// Priority is a tracker priority.
type Priority struct {
	ID   string
	Name string
}

// FieldInfo describes one field from the creation metadata.
type FieldInfo struct {
	Key      string
	Name     string
	Required bool
	// HasDefault means the server fills the field when it is omitted.
	HasDefault bool
	// Schema is the field's value type (e.g. "string", "array", "option").
	Schema string
	// AllowedValues holds the names or values the server accepts, if it lists them.
	AllowedValues []string
}

// MetaIssueType is an issue type with its creation fields.
type MetaIssueType struct {
	ID     string
	Name   string
	Fields map[string]FieldInfo
}

// MetaProject is creation metadata for one project.
type MetaProject struct {
	Key        string
	IssueTypes []MetaIssueType
}

// RequiredFieldSet maps field keys to fields that must be set on creation.
type RequiredFieldSet map[string]FieldInfo

// Keys returns the field keys in no particular order.
func (r RequiredFieldSet) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	return keys
}

// IssueRequest is what a caller asks to file.
type IssueRequest struct {
	ProjectKey  string
	IssueType   string
	Priority    string
	Summary     string
	Description string
	// ExtraFields are additional field values keyed by field key. The
	// "components" key names a single component.
	ExtraFields map[string]string
}

// IssuePayload is the creation request sent to the tracker.
type IssuePayload struct {
	ProjectKey  string
	IssueType   IssueType
	Priority    *Priority
	Summary     string
	Description string
	Components  []string
	Fields      map[string]string
}

// IssueRef identifies a created issue.
type IssueRef struct {
	ID   string
	Key  string
	Self string
}

// AttachmentsURI returns the attachment endpoint of the issue, or nil when
// the reference has no usable self link.
func (r IssueRef) AttachmentsURI() *url.URL {
	if r.Self == "" {
		return nil
	}
	u, err := url.Parse(strings.TrimRight(r.Self, "/") + "/attachments")
	if err != nil || !u.IsAbs() {
		return nil
	}
	return u
}

// BrowseURL returns the human-facing URL of the issue on server baseURL.
func (r IssueRef) BrowseURL(baseURL string) string {
	if r.Key == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/browse/" + r.Key
}

// Issue is a fetched issue.
type Issue struct {
	Ref         IssueRef
	Summary     string
	Description string
	IssueType   string
	Status      string
	Priority    string
	Project     string
	Components  []string
	Labels      []string
}
