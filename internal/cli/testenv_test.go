package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
	"github.com/randalmurphal/bugfiler/internal/config"
	"github.com/randalmurphal/bugfiler/internal/settings"
)

const testServerURL = "https://jira.example.com"

// stubTracker is an in-memory tracker with one project, PROJ.
type stubTracker struct {
	mu sync.Mutex

	projects   []bugtracker.Project
	priorities []bugtracker.Priority
	meta       []bugtracker.MetaProject
	issues     map[string]*bugtracker.Issue

	metaErr   error
	createErr error
	attachErr error

	created     []bugtracker.IssuePayload
	attachments []string
}

func newStubTracker() *stubTracker {
	return &stubTracker{
		projects: []bugtracker.Project{{
			ID:  "10000",
			Key: "PROJ",
			IssueTypes: []bugtracker.IssueType{
				{ID: "10004", Name: "Bug"},
				{ID: "10001", Name: "Task"},
			},
		}},
		priorities: []bugtracker.Priority{{ID: "2", Name: "High"}, {ID: "3", Name: "Medium"}},
		meta: []bugtracker.MetaProject{{
			Key: "PROJ",
			IssueTypes: []bugtracker.MetaIssueType{{
				ID:   "10004",
				Name: "Bug",
				Fields: map[string]bugtracker.FieldInfo{
					"summary":   {Key: "summary", Name: "Summary", Required: true},
					"project":   {Key: "project", Name: "Project", Required: true},
					"issuetype": {Key: "issuetype", Name: "Issue Type", Required: true},
					"reporter":  {Key: "reporter", Name: "Reporter", Required: true, HasDefault: true},
					"labels":    {Key: "labels", Name: "Labels"},
				},
			}},
		}},
		issues: make(map[string]*bugtracker.Issue),
	}
}

func (s *stubTracker) ListProjects(context.Context) ([]bugtracker.Project, error) {
	return s.projects, nil
}

func (s *stubTracker) GetProject(_ context.Context, key string) (*bugtracker.Project, error) {
	for i := range s.projects {
		if s.projects[i].Key == key {
			return &s.projects[i], nil
		}
	}
	return nil, nil
}

func (s *stubTracker) ListPriorities(context.Context) ([]bugtracker.Priority, error) {
	return s.priorities, nil
}

func (s *stubTracker) CreateMeta(context.Context, string) ([]bugtracker.MetaProject, error) {
	if s.metaErr != nil {
		return nil, s.metaErr
	}
	return s.meta, nil
}

func (s *stubTracker) CreateIssue(_ context.Context, payload bugtracker.IssuePayload) (bugtracker.IssueRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return bugtracker.IssueRef{}, s.createErr
	}
	s.created = append(s.created, payload)
	n := len(s.created)
	ref := bugtracker.IssueRef{
		ID:   fmt.Sprintf("1000%d", n),
		Key:  fmt.Sprintf("%s-%d", payload.ProjectKey, n),
		Self: fmt.Sprintf("%s/rest/api/3/issue/1000%d", testServerURL, n),
	}
	s.issues[ref.Key] = &bugtracker.Issue{
		Ref:       ref,
		Summary:   payload.Summary,
		IssueType: payload.IssueType.Name,
		Status:    "To Do",
		Project:   payload.ProjectKey,
	}
	return ref, nil
}

func (s *stubTracker) AddAttachment(_ context.Context, target *url.URL, fileName string, content io.Reader) error {
	if _, err := io.ReadAll(content); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachErr != nil {
		return s.attachErr
	}
	s.attachments = append(s.attachments, target.Path+"|"+fileName)
	return nil
}

func (s *stubTracker) GetIssue(_ context.Context, key string) (*bugtracker.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if issue, ok := s.issues[key]; ok {
		return issue, nil
	}
	return nil, fmt.Errorf("issue %s does not exist", key)
}

func (s *stubTracker) Myself(context.Context) (string, error) {
	return "Test User", nil
}

// testEnv is an isolated home directory with a config file pointing every
// path into it.
type testEnv struct {
	dir     string
	cfgPath string
	tracker *stubTracker
}

func newTestEnv(t *testing.T, extraConfig string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv(passwordEnvVar, "")

	cfg := fmt.Sprintf(`settings_file: %s
history:
  path: %s
log:
  file: %s
`, filepath.Join(dir, "settings.yaml"), filepath.Join(dir, "history.db"), filepath.Join(dir, "bugfiler.log"))
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg+extraConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &testEnv{dir: dir, cfgPath: cfgPath, tracker: newStubTracker()}
}

// writeSettings stores complete connection settings.
func (e *testEnv) writeSettings(t *testing.T) {
	t.Helper()
	content := fmt.Sprintf("%s: %s\n%s: me\n%s: secret\n",
		settings.KeyURL, testServerURL, settings.KeyLogin, settings.KeyPassword)
	if err := os.WriteFile(filepath.Join(e.dir, "settings.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
}

// run executes one command line against a fresh App, like one process.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	a := &App{
		stdin:    strings.NewReader(""),
		logDest:  io.Discard,
		terminal: func() bool { return false },
		connector: func(*config.Config) bugtracker.Connector {
			return func(s settings.Settings) (bugtracker.Tracker, error) {
				if _, err := settings.ValidateURL(s.URL); err != nil {
					return nil, err
				}
				return e.tracker, nil
			}
		},
	}
	defer a.Close()

	var out bytes.Buffer
	cmd := NewRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeJSON(t *testing.T, data string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(data), v); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
