package bugtracker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
	"github.com/randalmurphal/bugfiler/internal/settings"
)

// fakeTracker records calls and returns canned data.
type fakeTracker struct {
	mu    sync.Mutex
	calls []string

	projects    []Project
	projectsErr error
	project     *Project
	projectErr  error
	priorities  []Priority
	priosErr    error
	meta        []MetaProject
	metaErr     error
	created     IssueRef
	createErr   error
	attachErr   error
	issue       *Issue
	issueErr    error

	lastPayload  IssuePayload
	lastTarget   *url.URL
	lastFileName string
	lastContent  []byte
}

func (f *fakeTracker) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTracker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTracker) ListProjects(ctx context.Context) ([]Project, error) {
	f.record("ListProjects")
	return f.projects, f.projectsErr
}

func (f *fakeTracker) GetProject(ctx context.Context, key string) (*Project, error) {
	f.record("GetProject " + key)
	return f.project, f.projectErr
}

func (f *fakeTracker) ListPriorities(ctx context.Context) ([]Priority, error) {
	f.record("ListPriorities")
	return f.priorities, f.priosErr
}

func (f *fakeTracker) CreateMeta(ctx context.Context, projectKey string) ([]MetaProject, error) {
	f.record("CreateMeta " + projectKey)
	return f.meta, f.metaErr
}

func (f *fakeTracker) CreateIssue(ctx context.Context, payload IssuePayload) (IssueRef, error) {
	f.record("CreateIssue")
	f.lastPayload = payload
	return f.created, f.createErr
}

func (f *fakeTracker) AddAttachment(ctx context.Context, target *url.URL, fileName string, content io.Reader) error {
	f.record("AddAttachment")
	f.lastTarget = target
	f.lastFileName = fileName
	f.lastContent, _ = io.ReadAll(content)
	return f.attachErr
}

func (f *fakeTracker) GetIssue(ctx context.Context, key string) (*Issue, error) {
	f.record("GetIssue " + key)
	return f.issue, f.issueErr
}

func (f *fakeTracker) Myself(ctx context.Context) (string, error) {
	f.record("Myself")
	return "Bob", nil
}

// staticSource is a mutable SettingsSource.
type staticSource struct {
	mu sync.Mutex
	s  settings.Settings
}

func (s *staticSource) Load() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}

func (s *staticSource) set(v settings.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s = v
}

var completeSettings = settings.Settings{
	URL:      "https://x.atlassian.net",
	Login:    "bob",
	Password: "pw",
}

type harness struct {
	facade    *Facade
	source    *staticSource
	tracker   *fakeTracker
	connects  int
	lastBuilt settings.Settings
}

func newHarness(t *testing.T, s settings.Settings) *harness {
	t.Helper()
	h := &harness{
		source:  &staticSource{s: s},
		tracker: &fakeTracker{},
	}
	connect := func(s settings.Settings) (Tracker, error) {
		h.connects++
		h.lastBuilt = s
		if _, err := settings.ValidateURL(s.URL); err != nil {
			return nil, err
		}
		return h.tracker, nil
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.facade = New(h.source, connect, WithLogger(logger))
	return h
}

func TestHandle_IncompleteSettings(t *testing.T) {
	incomplete := []settings.Settings{
		{},
		{URL: "https://x.atlassian.net"},
		{URL: "https://x.atlassian.net", Login: "bob"},
		{URL: "https://x.atlassian.net", Password: "pw"},
		{Login: "bob", Password: "pw"},
	}
	for _, s := range incomplete {
		h := newHarness(t, s)

		res := h.facade.Handle()
		assert.False(t, res.OK())
		assert.Equal(t, MsgSettingsIncomplete, res.Message())
		require.NotNil(t, res.Err)
		assert.Equal(t, bferrors.CodeSettingsIncomplete, res.Err.Code)
		assert.Equal(t, 0, h.connects, "no handle may be constructed for %+v", s)
		assert.Equal(t, HandleAbsent, h.facade.State())
	}
}

func TestHandle_MalformedURL(t *testing.T) {
	h := newHarness(t, settings.Settings{URL: "not a url", Login: "bob", Password: "pw"})

	res := h.facade.Handle()
	assert.False(t, res.OK())
	assert.Equal(t, MsgIncorrectURI, res.Message())
	assert.Equal(t, bferrors.CodeInvalidURL, res.Err.Code)
	assert.Equal(t, HandleAbsent, h.facade.State())
}

func TestHandle_ReusesLiveHandle(t *testing.T) {
	h := newHarness(t, completeSettings)

	first := h.facade.Handle()
	require.True(t, first.OK())
	second := h.facade.Handle()
	require.True(t, second.OK())

	assert.Equal(t, 1, h.connects)
	assert.Equal(t, HandleLive, h.facade.State())
	assert.Equal(t, completeSettings, h.lastBuilt)
}

func TestInvalidate_ForcesFreshHandle(t *testing.T) {
	h := newHarness(t, completeSettings)
	require.True(t, h.facade.Handle().OK())

	h.source.set(settings.Settings{URL: "https://y.atlassian.net", Login: "alice", Password: "pw2"})
	h.facade.Invalidate()
	assert.Equal(t, HandleAbsent, h.facade.State())

	require.True(t, h.facade.Handle().OK())
	assert.Equal(t, 2, h.connects)
	assert.Equal(t, "alice", h.lastBuilt.Login)
	assert.Equal(t, "https://y.atlassian.net", h.lastBuilt.URL)
}

func TestInvalidate_WiredToSettingsEditor(t *testing.T) {
	store := &memStore{values: map[string]string{
		settings.KeyURL:      "https://x.atlassian.net",
		settings.KeyLogin:    "bob",
		settings.KeyPassword: "pw",
	}}
	holder := settings.NewHolder(store)
	tr := &fakeTracker{}
	connects := 0
	f := New(holder, func(s settings.Settings) (Tracker, error) {
		connects++
		return tr, nil
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	editor := settings.NewEditor(store)
	editor.OnChange(f.Invalidate)

	require.True(t, f.Handle().OK())
	_, err := editor.Set(settings.KeyPassword, "new-pw")
	require.NoError(t, err)
	assert.Equal(t, HandleAbsent, f.State())

	require.True(t, f.Handle().OK())
	assert.Equal(t, 2, connects)

	// Clearing a field leaves the facade unable to connect.
	_, err = editor.Set(settings.KeyLogin, settings.LoginPlaceholder)
	require.NoError(t, err)
	res := f.Handle()
	assert.False(t, res.OK())
	assert.Equal(t, MsgSettingsIncomplete, res.Message())
}

type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memStore) GetString(key, def string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	return def
}

func (m *memStore) SetString(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == "" {
		delete(m.values, key)
		return nil
	}
	m.values[key] = value
	return nil
}

func TestListProjects(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.projects = []Project{{Key: "PROJ"}, {Key: "OPS"}}

	res := h.facade.ListProjects(context.Background())
	require.True(t, res.OK())
	assert.Equal(t, []string{"PROJ", "OPS"}, res.Value)
}

func TestListProjects_FailureYieldsEmpty(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.projectsErr = errors.New("503 service unavailable")

	res := h.facade.ListProjects(context.Background())
	assert.True(t, res.OK(), "failure must not propagate")
	assert.NotNil(t, res.Value)
	assert.Empty(t, res.Value)
}

func TestListProjects_NoSettingsYieldsEmpty(t *testing.T) {
	h := newHarness(t, settings.Settings{})

	res := h.facade.ListProjects(context.Background())
	assert.True(t, res.OK())
	assert.Empty(t, res.Value)
}

func TestListIssueTypes(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.project = &Project{Key: "PROJ", IssueTypes: []IssueType{
		{ID: "1", Name: "Bug"},
		{ID: "2", Name: "Task"},
	}}

	res := h.facade.ListIssueTypes(context.Background(), "PROJ")
	require.True(t, res.OK())
	assert.Equal(t, []string{"Bug", "Task"}, res.Value)
}

func TestListIssueTypes_ProjectLookupFails(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.projectErr = errors.New("project PROJ does not exist")

	res := h.facade.ListIssueTypes(context.Background(), "PROJ")
	assert.False(t, res.OK())
	assert.Equal(t, "project PROJ does not exist", res.Message())
	assert.Equal(t, bferrors.CodeTransportFailure, res.Err.Code)
}

func TestListPriorities(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.priorities = []Priority{{ID: "1", Name: "Highest"}, {ID: "3", Name: "Medium"}}

	res := h.facade.ListPriorities(context.Background())
	require.True(t, res.OK())
	assert.Equal(t, []string{"Highest", "Medium"}, res.Value)

	h.tracker.priosErr = errors.New("timeout")
	res = h.facade.ListPriorities(context.Background())
	assert.False(t, res.OK())
	assert.Equal(t, "timeout", res.Message())
}

func TestResolvePriority(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.priorities = []Priority{{ID: "1", Name: "Highest"}, {ID: "3", Name: "Medium"}}

	got := h.facade.ResolvePriority(context.Background(), "Medium")
	require.NotNil(t, got)
	assert.Equal(t, "3", got.ID)

	assert.Nil(t, h.facade.ResolvePriority(context.Background(), "NonexistentPriority"))

	h.tracker.priosErr = errors.New("boom")
	assert.Nil(t, h.facade.ResolvePriority(context.Background(), "Medium"))
}

func TestResolveIssueType(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.project = &Project{Key: "PROJ", IssueTypes: []IssueType{{ID: "10004", Name: "Bug"}}}

	res := h.facade.ResolveIssueType(context.Background(), "PROJ", "Bug")
	require.True(t, res.OK())
	assert.Equal(t, "10004", res.Value.ID)

	miss := h.facade.ResolveIssueType(context.Background(), "PROJ", "Epic")
	assert.False(t, miss.OK())
	assert.Equal(t, bferrors.CodeNotFound, miss.Err.Code)
}

func TestRequiredFields(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.meta = []MetaProject{{
		Key: "PROJ",
		IssueTypes: []MetaIssueType{
			{Name: "Task", Fields: map[string]FieldInfo{
				"duedate": {Key: "duedate", Required: true},
			}},
			{Name: "Bug", Fields: map[string]FieldInfo{
				"summary": {Key: "summary", Name: "Summary", Required: true},
				"labels":  {Key: "labels", Name: "Labels", Required: false},
			}},
		},
	}}

	res := h.facade.RequiredFields(context.Background(), "PROJ", "Bug")
	require.True(t, res.OK())
	assert.Equal(t, RequiredFieldSet{
		"summary": {Key: "summary", Name: "Summary", Required: true},
	}, res.Value)
	assert.Equal(t, []string{"CreateMeta PROJ"}, h.tracker.calls)
}

func TestRequiredFields_NoneRequired(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.meta = []MetaProject{{
		Key: "PROJ",
		IssueTypes: []MetaIssueType{
			{Name: "Bug", Fields: map[string]FieldInfo{"labels": {Key: "labels"}}},
		},
	}}

	res := h.facade.RequiredFields(context.Background(), "PROJ", "Bug")
	require.True(t, res.OK())
	assert.Empty(t, res.Value)

	// Unknown issue type is an empty success as well.
	res = h.facade.RequiredFields(context.Background(), "PROJ", "Story")
	require.True(t, res.OK())
	assert.Empty(t, res.Value)
}

func TestRequiredFields_TransportFailure(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.metaErr = errors.New("401 unauthorized")

	res := h.facade.RequiredFields(context.Background(), "PROJ", "Bug")
	assert.False(t, res.OK())
	assert.Equal(t, "401 unauthorized", res.Message())
}

func TestBuildPayload_ComponentsSpecialCase(t *testing.T) {
	req := IssueRequest{
		ProjectKey:  "PROJ",
		Summary:     "Login fails",
		Description: "Steps...",
		ExtraFields: map[string]string{
			"components":        "Backend",
			"customfield_10010": "staging",
		},
	}
	payload := BuildPayload(req, IssueType{ID: "1", Name: "Bug"}, &Priority{ID: "2", Name: "High"})

	assert.Equal(t, []string{"Backend"}, payload.Components)
	_, scalar := payload.Fields["components"]
	assert.False(t, scalar, "components must not be set as a scalar field")
	assert.Equal(t, map[string]string{"customfield_10010": "staging"}, payload.Fields)
	assert.Equal(t, "PROJ", payload.ProjectKey)
	assert.Equal(t, "1", payload.IssueType.ID)
	assert.Equal(t, "High", payload.Priority.Name)
	assert.Equal(t, "Login fails", payload.Summary)
	assert.Equal(t, "Steps...", payload.Description)
}

func bugProjectTracker(h *harness) {
	h.tracker.project = &Project{Key: "PROJ", IssueTypes: []IssueType{{ID: "10004", Name: "Bug"}}}
	h.tracker.priorities = []Priority{{ID: "2", Name: "High"}}
	h.tracker.created = IssueRef{
		ID:   "10100",
		Key:  "PROJ-7",
		Self: "https://x.atlassian.net/rest/api/3/issue/10100",
	}
}

func TestCreateIssue(t *testing.T) {
	h := newHarness(t, completeSettings)
	bugProjectTracker(h)

	res := h.facade.CreateIssue(context.Background(), IssueRequest{
		ProjectKey:  "PROJ",
		IssueType:   "Bug",
		Priority:    "High",
		Summary:     "Crash on save",
		ExtraFields: map[string]string{"components": "Backend"},
	})
	require.True(t, res.OK(), res.Message())
	assert.Equal(t, "PROJ-7", res.Value.Key)

	p := h.tracker.lastPayload
	assert.Equal(t, []string{"Backend"}, p.Components)
	assert.Empty(t, p.Fields)
	require.NotNil(t, p.Priority)
	assert.Equal(t, "2", p.Priority.ID)
	assert.Equal(t, "10004", p.IssueType.ID)
}

func TestCreateIssue_UnknownPriorityIsNotFatal(t *testing.T) {
	h := newHarness(t, completeSettings)
	bugProjectTracker(h)

	res := h.facade.CreateIssue(context.Background(), IssueRequest{
		ProjectKey: "PROJ",
		IssueType:  "Bug",
		Priority:   "NonexistentPriority",
		Summary:    "s",
	})
	require.True(t, res.OK())
	assert.Nil(t, h.tracker.lastPayload.Priority)
}

func TestCreateIssue_UnknownIssueTypeIsFatal(t *testing.T) {
	h := newHarness(t, completeSettings)
	bugProjectTracker(h)

	res := h.facade.CreateIssue(context.Background(), IssueRequest{
		ProjectKey: "PROJ",
		IssueType:  "Epic",
		Summary:    "s",
	})
	assert.False(t, res.OK())
	assert.Equal(t, bferrors.CodeNotFound, res.Err.Code)
	assert.NotContains(t, h.tracker.calls, "CreateIssue")
}

func TestCreateIssue_NoHandle(t *testing.T) {
	h := newHarness(t, settings.Settings{URL: "https://x.atlassian.net"})

	res := h.facade.CreateIssue(context.Background(), IssueRequest{ProjectKey: "PROJ", IssueType: "Bug"})
	assert.False(t, res.OK())
	assert.Equal(t, "Incorrectly specified bug tracker URI.", res.Message())
	assert.Equal(t, 0, h.tracker.callCount())
}

func TestCreateIssue_SubmitFailure(t *testing.T) {
	h := newHarness(t, completeSettings)
	bugProjectTracker(h)
	h.tracker.createErr = errors.New("Field 'customfield_10010' is required.")

	res := h.facade.CreateIssue(context.Background(), IssueRequest{ProjectKey: "PROJ", IssueType: "Bug"})
	assert.False(t, res.OK())
	assert.Equal(t, "Field 'customfield_10010' is required.", res.Message())

	_, err := res.Unwrap()
	assert.Error(t, err)
	// Exactly one submission, no retry.
	count := 0
	for _, c := range h.tracker.calls {
		if c == "CreateIssue" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAttachFile_Validation(t *testing.T) {
	h := newHarness(t, completeSettings)
	target, err := url.Parse("https://x.atlassian.net/rest/api/3/issue/10100/attachments")
	require.NoError(t, err)

	res := h.facade.AttachFile(context.Background(), nil, "x.png", bytes.NewReader([]byte("data")))
	assert.False(t, res.OK())
	assert.Equal(t, "Issue key not specified", res.Message())

	res = h.facade.AttachFile(context.Background(), target, "", bytes.NewReader([]byte("data")))
	assert.False(t, res.OK())
	assert.Equal(t, "File name not specified", res.Message())

	assert.Equal(t, 0, h.tracker.callCount())
	assert.Equal(t, 0, h.connects, "validation happens before any connection")
}

func TestAttachFile(t *testing.T) {
	h := newHarness(t, completeSettings)
	ref := IssueRef{Self: "https://x.atlassian.net/rest/api/3/issue/10100"}
	target := ref.AttachmentsURI()
	require.NotNil(t, target)

	res := h.facade.AttachFile(context.Background(), target, "trace.log", bytes.NewReader([]byte("log line")))
	require.True(t, res.OK())
	assert.Equal(t, "https://x.atlassian.net/rest/api/3/issue/10100/attachments", h.tracker.lastTarget.String())
	assert.Equal(t, "trace.log", h.tracker.lastFileName)
	assert.Equal(t, "log line", string(h.tracker.lastContent))

	h.tracker.attachErr = errors.New("413 request entity too large")
	res = h.facade.AttachFile(context.Background(), target, "big.bin", bytes.NewReader(nil))
	assert.False(t, res.OK())
	assert.Equal(t, "413 request entity too large", res.Message())
}

func TestGetIssue(t *testing.T) {
	h := newHarness(t, completeSettings)
	h.tracker.issue = &Issue{Ref: IssueRef{Key: "PROJ-7"}, Summary: "Crash"}

	got := h.facade.GetIssue(context.Background(), "PROJ-7")
	require.NotNil(t, got)
	assert.Equal(t, "Crash", got.Summary)

	h.tracker.issueErr = errors.New("404")
	assert.Nil(t, h.facade.GetIssue(context.Background(), "PROJ-404"))
}

func TestCheckConnection(t *testing.T) {
	h := newHarness(t, completeSettings)
	res := h.facade.CheckConnection(context.Background())
	require.True(t, res.OK())
	assert.Equal(t, "Bob", res.Value)

	empty := newHarness(t, settings.Settings{})
	res = empty.facade.CheckConnection(context.Background())
	assert.False(t, res.OK())
	assert.Equal(t, MsgSettingsIncomplete, res.Message())
}

func TestIssueRefURIs(t *testing.T) {
	ref := IssueRef{Key: "PROJ-7", Self: "https://x.atlassian.net/rest/api/3/issue/10100/"}
	assert.Equal(t, "https://x.atlassian.net/rest/api/3/issue/10100/attachments", ref.AttachmentsURI().String())
	assert.Equal(t, "https://x.atlassian.net/browse/PROJ-7", ref.BrowseURL("https://x.atlassian.net/"))

	assert.Nil(t, IssueRef{}.AttachmentsURI())
	assert.Nil(t, IssueRef{Self: "relative/path"}.AttachmentsURI())
	assert.Equal(t, "", IssueRef{}.BrowseURL("https://x"))
}

func TestFacade_ConcurrentInvalidate(t *testing.T) {
	h := newHarness(t, completeSettings)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.facade.Handle()
		}()
		go func() {
			defer wg.Done()
			h.facade.Invalidate()
		}()
	}
	wg.Wait()

	h.facade.Invalidate()
	assert.Equal(t, HandleAbsent, h.facade.State())
	assert.True(t, h.facade.Handle().OK())
	assert.Equal(t, HandleLive, h.facade.State())
}

func TestName(t *testing.T) {
	h := newHarness(t, completeSettings)
	assert.Equal(t, "Jira Bug Tracker provider", h.facade.Name())
	assert.True(t, h.facade.SettingsComplete())
}
