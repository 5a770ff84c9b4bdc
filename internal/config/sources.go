package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates a built-in default value.
	SourceDefault ConfigSource = "default"
	// SourceFile indicates the config file.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates an environment variable override.
	SourceEnv ConfigSource = "env"
)

// TrackedSource contains both the source type and the file path.
type TrackedSource struct {
	Source ConfigSource
	Path   string // File path or env var name; empty for defaults
}

// String returns a human-readable source description.
func (ts TrackedSource) String() string {
	if ts.Path == "" {
		return string(ts.Source)
	}
	return fmt.Sprintf("%s: %s", ts.Source, ts.Path)
}

// EnvVar returns the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Sources reports, for every key in Keys, which layer supplied its value.
// Environment wins over the file, the file over defaults.
func Sources(v *viper.Viper) map[string]TrackedSource {
	out := make(map[string]TrackedSource, len(Keys))
	file := v.ConfigFileUsed()
	for _, key := range Keys {
		switch {
		case envSet(EnvVar(key)):
			out[key] = TrackedSource{Source: SourceEnv, Path: EnvVar(key)}
		case file != "" && v.InConfig(key):
			out[key] = TrackedSource{Source: SourceFile, Path: file}
		default:
			out[key] = TrackedSource{Source: SourceDefault}
		}
	}
	return out
}

func envSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}
