package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileStore persists settings in a YAML file. Reads go through viper; writes
// replace the whole file atomically with mode 0600 since it may hold a
// password.
type FileStore struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

// OpenFileStore loads the settings file at path. A missing file yields an
// empty store; the file is created on the first write.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]string)}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &pathErr) || errors.As(err, &notFound) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		if val := v.GetString(key); val != "" {
			s.values[key] = val
		}
	}
	return s, nil
}

// GetString implements Store.
func (s *FileStore) GetString(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// SetString implements Store.
func (s *FileStore) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	if value == "" {
		delete(s.values, key)
	} else {
		s.values[key] = value
	}

	if err := s.flush(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// flush writes the current values. Callers hold mu.
func (s *FileStore) flush() error {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: s.values[k], Style: yaml.DoubleQuotedStyle},
		)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return atomicWriteFile(s.path, data, 0o600)
}

// atomicWriteFile writes data to a temp file in the target directory, syncs
// it, then renames it over path. A crash mid-write leaves the old file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp to final: %w", err)
	}

	success = true
	return nil
}
