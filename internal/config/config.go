package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/engine-devenv/internal/model"
)

// DefaultFileName is looked up in the project directory when --config is
// not given.
const DefaultFileName = "engine-devenv.json"

// File is the on-disk configuration. Pointer fields distinguish "absent"
// from a zero value such as "detach": false.
type File struct {
	// Port accepts a number or a string.
	Port interface{} `json:"port,omitempty"`

	AppsPath       *string `json:"appsPath,omitempty"`
	ExtensionsPath *string `json:"extensionsPath,omitempty"`
	ContentPath    *string `json:"contentPath,omitempty"`

	Detach        *bool `json:"detach,omitempty"`
	Build         *bool `json:"build,omitempty"`
	SkipPreflight *bool `json:"skipPreflight,omitempty"`

	ProjectName *string `json:"projectName,omitempty"`

	// ComposeFile is a single path or an array of paths.
	ComposeFile interface{} `json:"composeFile,omitempty"`

	// ComposeCommand is a single binary ("docker-compose") or an array
	// (["docker", "compose"]).
	ComposeCommand interface{} `json:"composeCommand,omitempty"`

	EngineVersion *string `json:"engineVersion,omitempty"`
	RegistryURL   *string `json:"registryUrl,omitempty"`

	// RegistryTimeout is a Go duration string such as "10s".
	RegistryTimeout *string `json:"registryTimeout,omitempty"`
}

// Load reads and parses the config file at path. A missing file yields
// (nil, nil) unless required is set.
func Load(path string, required bool) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil, nil
		}
		return nil, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("failed to read config file %s", path),
			err,
		)
	}

	var f File
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("failed to parse config file %s", path),
			err,
		)
	}
	return &f, nil
}

// Apply overlays the keys present in f onto cfg. A nil File is a no-op.
func (f *File) Apply(cfg *model.LaunchConfig) error {
	if f == nil {
		return nil
	}

	if f.Port != nil {
		port, err := normalizePort(f.Port)
		if err != nil {
			return err
		}
		cfg.Port = port
	}

	setString(&cfg.Paths.Apps, f.AppsPath)
	setString(&cfg.Paths.Extensions, f.ExtensionsPath)
	setString(&cfg.Paths.Media, f.ContentPath)
	setString(&cfg.ProjectName, f.ProjectName)
	setString(&cfg.EngineVersion, f.EngineVersion)
	setString(&cfg.RegistryURL, f.RegistryURL)

	setBool(&cfg.Detach, f.Detach)
	setBool(&cfg.Build, f.Build)
	setBool(&cfg.SkipPreflight, f.SkipPreflight)

	if f.ComposeFile != nil {
		files, err := stringOrList("composeFile", f.ComposeFile)
		if err != nil {
			return err
		}
		cfg.ComposeFiles = files
	}
	if f.ComposeCommand != nil {
		command, err := stringOrList("composeCommand", f.ComposeCommand)
		if err != nil {
			return err
		}
		cfg.ComposeCommand = command
	}

	if f.RegistryTimeout != nil {
		d, err := time.ParseDuration(*f.RegistryTimeout)
		if err != nil {
			return fmt.Errorf("invalid registryTimeout %q: %w", *f.RegistryTimeout, err)
		}
		cfg.RegistryTimeout = d
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// normalizePort accepts 9076 or "9076". encoding/json decodes numbers into
// interface{} as float64.
func normalizePort(v interface{}) (string, error) {
	switch p := v.(type) {
	case string:
		return p, nil
	case float64:
		if p != float64(int(p)) {
			return "", fmt.Errorf("invalid port %v: must be an integer", p)
		}
		return strconv.Itoa(int(p)), nil
	default:
		return "", fmt.Errorf("invalid port: expected number or string, got %T", v)
	}
}

// stringOrList normalizes a value that may be a single string or an array
// of strings into a non-empty []string.
func stringOrList(key string, v interface{}) ([]string, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil, fmt.Errorf("%s must not be empty", key)
		}
		return []string{val}, nil
	case []interface{}:
		if len(val) == 0 {
			return nil, fmt.Errorf("%s must not be empty", key)
		}
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%s[%d]: expected non-empty string, got %v", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected string or array of strings, got %T", key, v)
	}
}
