package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment variables read by the loader.
	EnvPrefix = "PHASEWEAVER_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// ErrProjectNotFound is returned when the project directory does not exist.
var ErrProjectNotFound = errors.New("project directory not found")

// sections are the nested keys reachable from the environment. Anything else
// after the prefix maps to a top-level key.
var sections = map[string]bool{
	"paths":     true,
	"build":     true,
	"artifacts": true,
	"logging":   true,
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ProjectDir is required and must exist.
	ProjectDir string

	// File is an explicit config file. When empty, DefaultFileName in the
	// project directory is used if present.
	File string

	// Overrides are applied last, keyed by dotted koanf path
	// (e.g. "build.tool"). Empty string values are ignored.
	Overrides map[string]string
}

// Load builds a validated Config.
//
// Environment variables are mapped by stripping EnvPrefix, lowercasing, and
// splitting a known section from its field on the first underscore:
//
//	PHASEWEAVER_SNAPSHOT       -> snapshot
//	PHASEWEAVER_BUILD_TOOL     -> build.tool
//	PHASEWEAVER_PATHS_RUN_LOGS -> paths.run_logs
func Load(opts LoadOptions) (Config, error) {
	projectDir, err := resolveProjectDir(opts.ProjectDir)
	if err != nil {
		return Config{}, err
	}

	k := koanf.New(".")

	file, explicit := opts.File, opts.File != ""
	if !explicit {
		file = filepath.Join(projectDir, DefaultFileName)
	}
	content, err := readConfigFile(file, explicit)
	if err != nil {
		return Config{}, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	for key, val := range opts.Overrides {
		if val == "" {
			continue
		}
		if err := k.Set(key, val); err != nil {
			return Config{}, fmt.Errorf("failed to apply override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ProjectDir = projectDir
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg.Clone(), nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 2 && sections[parts[0]] {
		return parts[0] + "." + parts[1]
	}
	if strings.Contains(lower, "_") {
		// Not a key we know how to place.
		return ""
	}
	return lower
}

func resolveProjectDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: no directory given", ErrProjectNotFound)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrProjectNotFound, dir)
	}
	return abs, nil
}

// readConfigFile returns nil content when an implicit file is absent.
func readConfigFile(path string, required bool) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config file %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	return io.ReadAll(io.LimitReader(f, maxConfigFileSize))
}
