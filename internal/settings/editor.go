package settings

import (
	"fmt"
	"sync"
)

// Form labels and in-field placeholder text shown by settings editors.
const (
	LoginLabel    = "Username:"
	PasswordLabel = "Password:"
	URLLabel      = "JIRA server URL:"

	LoginDescription    = "Your JIRA user account (not an email)"
	PasswordDescription = "The password for logging in"
	URLDescription      = "The URL of your JIRA instance, for instance, https://mycompany.atlassian.net"

	LoginPlaceholder = "Your JIRA user account (not an email)"
	URLPlaceholder   = "The URL of your JIRA instance (https://...)"
)

// Placeholder returns the placeholder text for key, or "" when the field
// has none (the password field never shows one).
func Placeholder(key string) string {
	switch key {
	case KeyLogin:
		return LoginPlaceholder
	case KeyURL:
		return URLPlaceholder
	default:
		return ""
	}
}

// FocusEnter returns the field text after focus enters it: a field showing
// its placeholder is cleared.
func FocusEnter(value, placeholder string) string {
	if placeholder != "" && value == placeholder {
		return ""
	}
	return value
}

// FocusLeave returns the field text after focus leaves it: an empty field
// shows its placeholder again.
func FocusLeave(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}

// Normalize maps a placeholder value to "" so that it is never stored as a
// real credential.
func Normalize(key, value string) string {
	if p := Placeholder(key); p != "" && value == p {
		return ""
	}
	return value
}

// Editor applies settings edits to a Store and notifies change listeners.
// Listeners run synchronously after the store write and before Set returns,
// so a listener that drops a cached connection is observed by the next read.
type Editor struct {
	store Store

	mu        sync.Mutex
	listeners []func()
}

// NewEditor creates an Editor over store.
func NewEditor(store Store) *Editor {
	return &Editor{store: store}
}

// OnChange registers fn to run after every effective edit.
func (e *Editor) OnChange(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Set stores value under key. Placeholder text is treated as unset. It
// returns whether the stored value changed.
func (e *Editor) Set(key, value string) (bool, error) {
	if !isKnownKey(key) {
		return false, fmt.Errorf("unknown settings key %q", key)
	}
	value = Normalize(key, value)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.GetString(key, "") == value {
		return false, nil
	}
	if err := e.store.SetString(key, value); err != nil {
		return false, fmt.Errorf("store %s: %w", key, err)
	}
	for _, fn := range e.listeners {
		fn()
	}
	return true, nil
}

// StoreValues applies a set of form values keyed by settings key. Keys not
// present in values are left untouched.
func (e *Editor) StoreValues(values map[string]string) error {
	for _, key := range Keys {
		v, ok := values[key]
		if !ok {
			continue
		}
		if _, err := e.Set(key, v); err != nil {
			return err
		}
	}
	return nil
}

// FormValues returns the current values for display in a form. Unset login
// and URL fields show their placeholder.
func FormValues(store Store) map[string]string {
	return map[string]string{
		KeyLogin:    store.GetString(KeyLogin, LoginPlaceholder),
		KeyPassword: store.GetString(KeyPassword, ""),
		KeyURL:      store.GetString(KeyURL, URLPlaceholder),
	}
}

func isKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
