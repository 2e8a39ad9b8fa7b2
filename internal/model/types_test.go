package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIsWindowsPlatform verifies the prefix match used to pick the
// Windows path template.
func TestIsWindowsPlatform(t *testing.T) {
	tests := []struct {
		goos string
		want bool
	}{
		{"windows", true},
		{"win32", true},
		{"Windows", true},
		{"linux", false},
		{"darwin", false},
		{"freebsd", false},
		{"", false},
		{"darwin-win", false}, // only a leading "win" counts
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWindowsPlatform(tt.goos))
		})
	}
}

// TestDefaultMountPaths checks that all three defaults switch template
// together, never one at a time.
func TestDefaultMountPaths(t *testing.T) {
	t.Run("windows template", func(t *testing.T) {
		paths := DefaultMountPaths("windows")
		assert.Equal(t, "~/Documents/Qlik/Sense/Apps", paths.Apps)
		assert.Equal(t, "~/Documents/Qlik/Sense/Extensions", paths.Extensions)
		assert.Equal(t, "~/Documents/Qlik/Sense/Content", paths.Media)
	})

	for _, goos := range []string{"linux", "darwin", "openbsd"} {
		t.Run(goos+" template", func(t *testing.T) {
			paths := DefaultMountPaths(goos)
			assert.Equal(t, "~/Qlik/Sense/Apps", paths.Apps)
			assert.Equal(t, "~/Qlik/Sense/Extensions", paths.Extensions)
			assert.Equal(t, "~/Qlik/Sense/Content", paths.Media)
		})
	}
}

func TestMountPaths_All(t *testing.T) {
	paths := MountPaths{Apps: "a", Extensions: "e", Media: "m"}
	assert.Equal(t, []string{"a", "e", "m"}, paths.All())
}

// TestDefaultLaunchConfig verifies the documented CLI defaults.
func TestDefaultLaunchConfig(t *testing.T) {
	cfg := DefaultLaunchConfig("linux")

	assert.Equal(t, "9076", cfg.Port)
	assert.True(t, cfg.Detach, "detach defaults to true")
	assert.False(t, cfg.Stop, "stop defaults to false")
	assert.True(t, cfg.Build)
	assert.Equal(t, "core-dev", cfg.ProjectName)
	assert.Equal(t, []string{"./docker-compose.yml"}, cfg.ComposeFiles)
	assert.Equal(t, []string{"docker", "compose"}, cfg.ComposeCommand)
	assert.Equal(t, DefaultRegistryURL, cfg.RegistryURL)
	assert.Empty(t, cfg.EngineVersion)
	require.NoError(t, cfg.Validate())

	// Mutating the returned command must not leak into the package default.
	cfg.ComposeCommand[0] = "podman"
	assert.Equal(t, "docker", DefaultComposeCommand[0])
}

func TestLaunchConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *LaunchConfig)
		hasError bool
	}{
		{"defaults", func(c *LaunchConfig) {}, false},
		{"non-numeric port", func(c *LaunchConfig) { c.Port = "http" }, true},
		{"port zero", func(c *LaunchConfig) { c.Port = "0" }, true},
		{"port too high", func(c *LaunchConfig) { c.Port = "70000" }, true},
		{"max port", func(c *LaunchConfig) { c.Port = "65535" }, false},
		{"empty project", func(c *LaunchConfig) { c.ProjectName = "" }, true},
		{"no compose files", func(c *LaunchConfig) { c.ComposeFiles = nil }, true},
		{"empty compose command", func(c *LaunchConfig) { c.ComposeCommand = []string{""} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLaunchConfig("linux")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestLaunchConfig_ComposeEnv verifies the exact variable set handed to
// the compose definition.
func TestLaunchConfig_ComposeEnv(t *testing.T) {
	cfg := DefaultLaunchConfig("linux")
	cfg.Port = "19076"
	cfg.Paths = MountPaths{Apps: "/data/apps", Extensions: "/data/ext", Media: "/data/media"}

	env := cfg.ComposeEnv("12.34.5")

	assert.Equal(t, map[string]string{
		"PORT":            "19076",
		"ENGINE_VERSION":  "12.34.5",
		"ENGINE_PARAMS":   "",
		"APPS_PATH":       "/data/apps",
		"EXTENSIONS_PATH": "/data/ext",
		"MEDIA_PATH":      "/data/media",
	}, env)
	assert.Equal(t, 19076, cfg.PortNumber())
}

func TestContainerInfo_IsRunning(t *testing.T) {
	assert.True(t, ContainerInfo{State: "running"}.IsRunning())
	assert.False(t, ContainerInfo{State: "exited"}.IsRunning())
	assert.False(t, ContainerInfo{}.IsRunning())
}

// TestCLIError verifies the custom error type used for exit code mapping.
func TestCLIError(t *testing.T) {
	t.Run("simple error", func(t *testing.T) {
		err := NewCLIError(ExitDockerNotRunning, "Docker daemon is not running")
		assert.Equal(t, ExitDockerNotRunning, err.Code)
		assert.Equal(t, "Docker daemon is not running", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := WrapCLIError(ExitStartupFailed, "failed to start environment", inner)
		assert.Equal(t, ExitStartupFailed, err.Code)
		assert.Equal(t, "failed to start environment: connection refused", err.Error())
		assert.Equal(t, inner, err.Unwrap())
	})

	t.Run("errors.As through fmt wrapping", func(t *testing.T) {
		inner := errors.New("connection refused")
		wrapped := fmt.Errorf("launch: %w", WrapCLIError(ExitRegistryError, "lookup failed", inner))

		var cliErr *CLIError
		require.True(t, errors.As(wrapped, &cliErr))
		assert.Equal(t, ExitRegistryError, cliErr.Code)
		assert.True(t, errors.Is(wrapped, inner))
	})
}
