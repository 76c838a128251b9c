package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"recordpipe/internal/failure"
)

// EnvPrefix is the prefix for environment overrides of System settings,
// e.g. RECORDPIPE_DATABASE_DSN overrides database.dsn.
const EnvPrefix = "RECORDPIPE"

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("error_dir", "errors")
	v.SetDefault("processed_dir", "processed")
	v.SetDefault("concurrency", 1)
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.starttls", true)
	v.SetDefault("database.kind", "postgres")
	v.SetDefault("database.batch_size", 1000)
	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.job", "recordpipe")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("watch.settle", 2*time.Second)
	v.SetDefault("watch.pattern", "*")
}

// LoadSystem reads the system configuration at path. The format is inferred
// from the extension (yaml, yml, json, toml). Environment variables prefixed
// with RECORDPIPE_ override file values.
func LoadSystem(path string) (System, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return System{}, failure.FileNotFound(path, err)
			}
			return System{}, failure.Configuration("reading system config %s: %w", path, err)
		}
	}

	// A "system:" wrapper (as in older deployments) is accepted transparently.
	if sub := v.Sub("system"); sub != nil {
		setDefaults(sub)
		sub.SetEnvPrefix(EnvPrefix)
		sub.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		sub.AutomaticEnv()
		v = sub
	}

	var s System
	if err := v.Unmarshal(&s); err != nil {
		return System{}, failure.Configuration("unmarshaling system config: %w", err)
	}
	return s, nil
}

// LoadFile reads a file configuration (YAML or JSON) from path. Unknown keys
// are rejected.
func LoadFile(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return File{}, failure.FileNotFound(path, err)
		}
		return File{}, failure.Configuration("reading file config %s: %w", path, err)
	}
	f, err := DecodeFile(bytes.NewReader(b))
	if err != nil {
		return File{}, failure.Configuration("decoding file config %s: %w", path, err)
	}
	return f, nil
}

// DecodeFile decodes a File from YAML (JSON is accepted as a YAML subset).
func DecodeFile(r io.Reader) (File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, fmt.Errorf("empty document")
		}
		return File{}, err
	}
	return f, nil
}

// ResolveFile locates and loads the file configuration for a run. An explicit
// path wins; otherwise key is looked up as <file_config_dir>/<key>.yaml (then
// .yml, .json). The returned key is derived from the path when not given.
func ResolveFile(sys System, key, path string) (File, string, error) {
	switch {
	case path != "":
		f, err := LoadFile(path)
		if err != nil {
			return File{}, "", err
		}
		if key == "" {
			key = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return f, key, nil

	case key != "":
		if sys.FileConfigDir == "" {
			return File{}, "", failure.Configuration("file_config_dir not defined in system config")
		}
		for _, ext := range []string{".yaml", ".yml", ".json"} {
			p := filepath.Join(sys.FileConfigDir, key+ext)
			if _, err := os.Stat(p); err == nil {
				f, err := LoadFile(p)
				return f, key, err
			}
		}
		return File{}, "", failure.FileNotFound(
			filepath.Join(sys.FileConfigDir, key+".yaml"),
			fmt.Errorf("no configuration for key %q", key),
		)

	default:
		return File{}, "", failure.Configuration("either a file key or a file config path must be provided")
	}
}
