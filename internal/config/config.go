// Package config loads jobd's runtime configuration by layering an
// optional config file, environment variables, and CLI flags with
// spf13/viper, mirroring the teacher's own config-loading idiom.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	DBPath     string
	RuntimeDir string
	Verbose    bool
}

// Load resolves Config from (lowest to highest precedence): built-in
// defaults, an optional config file at configFile (ignored if empty or
// absent), environment variables (JOBD_DB_PATH, JOBD_RUNTIME_DIR,
// JOBD_VERBOSE), and finally the CLI flag overrides already parsed into
// overrides (nil entries are left at their prior value).
func Load(configFile string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBD")
	v.AutomaticEnv()

	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("runtime_dir", defaultRuntimeDir())
	v.SetDefault("verbose", false)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file %s: %w", configFile, err)
			}
		}
	}

	for key, val := range overrides {
		if val == nil {
			continue
		}
		v.Set(key, val)
	}

	return &Config{
		DBPath:     v.GetString("db_path"),
		RuntimeDir: v.GetString("runtime_dir"),
		Verbose:    v.GetBool("verbose"),
	}, nil
}

// defaultDBPath mirrors spec.md §6's "default platform-specific runtime
// dir" for the catalog location.
func defaultDBPath() string {
	return filepath.Join(baseStateDir(), "jobd.db")
}

func defaultRuntimeDir() string {
	return filepath.Join(baseStateDir(), "run")
}

func baseStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "jobd")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "jobd")
	}
	return filepath.Join(os.TempDir(), "jobd")
}
