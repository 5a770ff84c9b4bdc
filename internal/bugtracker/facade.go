package bugtracker

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sync"

	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
)

// Literal failure messages shown to users.
const (
	MsgSettingsIncomplete   = "settings not completely specified"
	MsgIncorrectURI         = "Incorrectly specified bug tracker URI."
	MsgIssueKeyNotSpecified = "Issue key not specified"
	MsgFileNameNotSpecified = "File name not specified"
)

// componentsField is the extra-field key that names the issue's component.
const componentsField = "components"

// HandleState is the lifecycle state of the facade's tracker connection.
type HandleState int

const (
	// HandleAbsent means no connection is held; the next call builds one.
	HandleAbsent HandleState = iota
	// HandleLive means a connection built from complete settings is held.
	HandleLive
)

func (s HandleState) String() string {
	if s == HandleLive {
		return "live"
	}
	return "absent"
}

// Facade owns one tracker connection and exposes the bug-filing operations.
// Every operation blocks for its round trip and returns a result value;
// none retries.
type Facade struct {
	source  SettingsSource
	connect Connector
	logger  *slog.Logger

	mu     sync.Mutex
	handle Tracker
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the logger used for failed round trips.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Facade with no live connection.
func New(source SettingsSource, connect Connector, opts ...Option) *Facade {
	f := &Facade{
		source:  source,
		connect: connect,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name identifies the provider.
func (f *Facade) Name() string {
	return "Jira Bug Tracker provider"
}

// SettingsComplete reports whether the current settings can build a connection.
func (f *Facade) SettingsComplete() bool {
	return f.source.Load().Complete()
}

// State returns the current connection state.
func (f *Facade) State() HandleState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handle != nil {
		return HandleLive
	}
	return HandleAbsent
}

// Invalidate drops the current connection. It must be called whenever a
// settings field is edited; the next call rebuilds from fresh settings.
func (f *Facade) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handle != nil {
		f.logger.Debug("bug tracker connection invalidated")
	}
	f.handle = nil
}

// Handle returns the live connection, building it on first use.
func (f *Facade) Handle() Result[Tracker] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handle != nil {
		return Success(f.handle)
	}

	s := f.source.Load()
	if !s.Complete() {
		f.logger.Error("bug tracker settings are not completely specified")
		return Failure[Tracker](MsgSettingsIncomplete, bferrors.ErrSettingsIncomplete())
	}

	t, err := f.connect(s)
	if err != nil {
		f.logger.Error("create bug tracker connection", "url", s.URL, "error", err)
		return Failure[Tracker](MsgIncorrectURI, bferrors.ErrInvalidURL(s.URL).WithCause(err))
	}

	f.handle = t
	f.logger.Debug("bug tracker connection created", "url", s.URL, "login", s.Login)
	return Success(t)
}

// CheckConnection verifies the credentials and returns the user's display name.
func (f *Facade) CheckConnection(ctx context.Context) Result[string] {
	h := f.Handle()
	if !h.OK() {
		return Failure[string](h.Message(), h.Err)
	}
	name, err := h.Value.Myself(ctx)
	if err != nil {
		f.logger.Error("check connection", "error", err)
		return failureFrom[string]("check connection", err)
	}
	return Success(name)
}

// ListProjects returns project keys. A failed lookup yields an empty list
// rather than a failure so pickers show nothing instead of a transport error.
func (f *Facade) ListProjects(ctx context.Context) Result[[]string] {
	h := f.Handle()
	if !h.OK() {
		return Success([]string{})
	}
	projects, err := h.Value.ListProjects(ctx)
	if err != nil {
		f.logger.Error("list projects", "error", err)
		return Success([]string{})
	}
	keys := make([]string, 0, len(projects))
	for _, p := range projects {
		keys = append(keys, p.Key)
	}
	return Success(keys)
}

// issueTypes fetches the project and returns its issue types.
func (f *Facade) issueTypes(ctx context.Context, projectKey string) Result[[]IssueType] {
	h := f.Handle()
	if !h.OK() {
		return Failure[[]IssueType](h.Message(), h.Err)
	}
	project, err := h.Value.GetProject(ctx, projectKey)
	if err != nil {
		f.logger.Error("get project", "project", projectKey, "error", err)
		return failureFrom[[]IssueType]("get project "+projectKey, err)
	}
	if project == nil {
		nf := bferrors.ErrNotFound("project", projectKey)
		return Failure[[]IssueType](nf.What, nf)
	}
	return Success(project.IssueTypes)
}

// ListIssueTypes returns the issue type names of a project.
func (f *Facade) ListIssueTypes(ctx context.Context, projectKey string) Result[[]string] {
	types := f.issueTypes(ctx, projectKey)
	if !types.OK() {
		return Failure[[]string](types.Message(), types.Err)
	}
	names := make([]string, 0, len(types.Value))
	for _, it := range types.Value {
		names = append(names, it.Name)
	}
	return Success(names)
}

// ResolveIssueType finds a project's issue type by name.
func (f *Facade) ResolveIssueType(ctx context.Context, projectKey, name string) Result[IssueType] {
	types := f.issueTypes(ctx, projectKey)
	if !types.OK() {
		return Failure[IssueType](types.Message(), types.Err)
	}
	for _, it := range types.Value {
		if it.Name == name {
			return Success(it)
		}
	}
	nf := bferrors.ErrNotFound("issue type", name)
	return Failure[IssueType](nf.What, nf)
}

// priorities fetches the priority list.
func (f *Facade) priorities(ctx context.Context) Result[[]Priority] {
	h := f.Handle()
	if !h.OK() {
		return Failure[[]Priority](h.Message(), h.Err)
	}
	prios, err := h.Value.ListPriorities(ctx)
	if err != nil {
		f.logger.Error("list priorities", "error", err)
		return failureFrom[[]Priority]("list priorities", err)
	}
	return Success(prios)
}

// ListPriorities returns priority names.
func (f *Facade) ListPriorities(ctx context.Context) Result[[]string] {
	prios := f.priorities(ctx)
	if !prios.OK() {
		return Failure[[]string](prios.Message(), prios.Err)
	}
	names := make([]string, 0, len(prios.Value))
	for _, p := range prios.Value {
		names = append(names, p.Name)
	}
	return Success(names)
}

// ResolvePriority finds a priority by name. It returns nil when there is no
// such priority or the list could not be fetched; callers file the issue
// without a priority in that case.
func (f *Facade) ResolvePriority(ctx context.Context, name string) *Priority {
	prios := f.priorities(ctx)
	if !prios.OK() {
		return nil
	}
	for i := range prios.Value {
		if prios.Value[i].Name == name {
			return &prios.Value[i]
		}
	}
	return nil
}

// RequiredFields returns the fields that must be set when creating an issue
// of issueType in projectKey. No matching issue type, or nothing required,
// yields an empty set.
func (f *Facade) RequiredFields(ctx context.Context, projectKey, issueType string) Result[RequiredFieldSet] {
	h := f.Handle()
	if !h.OK() {
		return Failure[RequiredFieldSet](h.Message(), h.Err)
	}
	meta, err := h.Value.CreateMeta(ctx, projectKey)
	if err != nil {
		f.logger.Error("get create metadata", "project", projectKey, "error", err)
		return failureFrom[RequiredFieldSet]("get create metadata", err)
	}
	for _, p := range meta {
		for _, it := range p.IssueTypes {
			if it.Name != issueType {
				continue
			}
			required := make(RequiredFieldSet)
			for key, field := range it.Fields {
				if field.Required {
					required[key] = field
				}
			}
			return Success(required)
		}
	}
	return Success(RequiredFieldSet{})
}

// BuildPayload assembles the creation payload. Every extra field is copied
// as a field value except "components", which becomes a one-element
// component list.
func BuildPayload(req IssueRequest, issueType IssueType, priority *Priority) IssuePayload {
	payload := IssuePayload{
		ProjectKey:  req.ProjectKey,
		IssueType:   issueType,
		Priority:    priority,
		Summary:     req.Summary,
		Description: req.Description,
		Fields:      make(map[string]string, len(req.ExtraFields)),
	}
	for key, value := range req.ExtraFields {
		if key == componentsField {
			payload.Components = []string{value}
			continue
		}
		payload.Fields[key] = value
	}
	return payload
}

// CreateIssue files a new issue.
func (f *Facade) CreateIssue(ctx context.Context, req IssueRequest) IssueCreationResult {
	h := f.Handle()
	if !h.OK() {
		err := h.Err
		if err == nil {
			err = bferrors.ErrInvalidURL("")
		}
		return Failure[IssueRef](MsgIncorrectURI, err)
	}

	issueType := f.ResolveIssueType(ctx, req.ProjectKey, req.IssueType)
	if !issueType.OK() {
		return Failure[IssueRef](issueType.Message(), issueType.Err)
	}

	var priority *Priority
	if req.Priority != "" {
		priority = f.ResolvePriority(ctx, req.Priority)
		if priority == nil {
			f.logger.Warn("priority not found, filing without priority", "priority", req.Priority)
		}
	}

	payload := BuildPayload(req, issueType.Value, priority)
	ref, err := h.Value.CreateIssue(ctx, payload)
	if err != nil {
		f.logger.Error("create issue", "project", req.ProjectKey, "issue_type", req.IssueType, "error", err)
		return failureFrom[IssueRef]("create issue", err)
	}
	f.logger.Info("issue created", "key", ref.Key, "project", req.ProjectKey)
	return Success(ref)
}

// AttachFile uploads content as fileName to the attachment endpoint target.
// Missing arguments are rejected before any tracker call.
func (f *Facade) AttachFile(ctx context.Context, target *url.URL, fileName string, content io.Reader) AttachmentResult {
	if target == nil {
		return Failure[struct{}](MsgIssueKeyNotSpecified, bferrors.ErrValidation(MsgIssueKeyNotSpecified))
	}
	if fileName == "" {
		return Failure[struct{}](MsgFileNameNotSpecified, bferrors.ErrValidation(MsgFileNameNotSpecified))
	}

	h := f.Handle()
	if !h.OK() {
		return Failure[struct{}](h.Message(), h.Err)
	}
	if err := h.Value.AddAttachment(ctx, target, fileName, content); err != nil {
		f.logger.Error("add attachment", "target", target.String(), "file", fileName, "error", err)
		return failureFrom[struct{}]("add attachment", err)
	}
	return Success(struct{}{})
}

// GetIssue fetches an issue by key. It returns nil on any failure; callers
// must check.
func (f *Facade) GetIssue(ctx context.Context, key string) *Issue {
	h := f.Handle()
	if !h.OK() {
		return nil
	}
	issue, err := h.Value.GetIssue(ctx, key)
	if err != nil {
		f.logger.Error("get issue", "key", key, "error", err)
		return nil
	}
	return issue
}
