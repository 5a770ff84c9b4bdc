// Package settings holds the JIRA connection settings: the server URL, the
// login and the password, read through a persisted key/value store.
package settings

import (
	"fmt"
	"net/url"
	"strings"
)

// Persisted keys.
const (
	KeyLogin    = "login"
	KeyPassword = "password"
	KeyURL      = "default_url"
)

// Keys lists every persisted key in form order.
var Keys = []string{KeyLogin, KeyPassword, KeyURL}

// Settings is the immutable (url, login, password) triple used to build a
// tracker connection.
type Settings struct {
	URL      string `json:"url" yaml:"url"`
	Login    string `json:"login" yaml:"login"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// Complete reports whether all three fields are set. Partial credentials
// never produce a connection.
func (s Settings) Complete() bool {
	return s.URL != "" && s.Login != "" && s.Password != ""
}

// Redacted returns a copy safe for display.
func (s Settings) Redacted() Settings {
	if s.Password != "" {
		s.Password = "********"
	}
	return s
}

// Store is the persisted configuration store.
type Store interface {
	// GetString returns the stored value for key, or def when unset.
	GetString(key, def string) string
	// SetString persists value under key. An empty value unsets the key.
	SetString(key, value string) error
}

// Holder is a read-through accessor over a Store. It does not cache:
// every Load reflects the store at call time.
type Holder struct {
	store Store
}

// NewHolder creates a Holder over store.
func NewHolder(store Store) *Holder {
	return &Holder{store: store}
}

// Load reads the current settings, defaulting each field to "".
func (h *Holder) Load() Settings {
	return Settings{
		URL:      h.store.GetString(KeyURL, ""),
		Login:    h.store.GetString(KeyLogin, ""),
		Password: h.store.GetString(KeyPassword, ""),
	}
}

// ValidateURL checks that raw is an absolute http(s) URL with a host and
// returns it without a trailing slash.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("url is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", trimmed)
	}
	return strings.TrimRight(trimmed, "/"), nil
}
