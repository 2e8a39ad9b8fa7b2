package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when neither a flag nor the config file sets a value.
const (
	// DefaultPort is the host port the engine is exposed on.
	DefaultPort = "9076"

	// DefaultProjectName is the compose project name used for both "up"
	// and "down", so teardown always targets what start created.
	DefaultProjectName = "core-dev"

	// DefaultComposeFile is resolved relative to the project directory.
	DefaultComposeFile = "./docker-compose.yml"

	// DefaultRegistryURL lists the tags of the engine image on Docker Hub.
	// The registry returns the most recently pushed tag first.
	DefaultRegistryURL = "https://registry.hub.docker.com/v2/repositories/qlikcore/engine/tags/"

	// DefaultRegistryTimeout bounds the single tag lookup request.
	DefaultRegistryTimeout = 30 * time.Second
)

// DefaultComposeCommand is the plugin-style compose invocation. A legacy
// standalone binary can be configured as []string{"docker-compose"}.
var DefaultComposeCommand = []string{"docker", "compose"}

// Environment variable names read by the compose definition.
const (
	EnvPort           = "PORT"
	EnvEngineVersion  = "ENGINE_VERSION"
	EnvEngineParams   = "ENGINE_PARAMS"
	EnvAppsPath       = "APPS_PATH"
	EnvExtensionsPath = "EXTENSIONS_PATH"
	EnvMediaPath      = "MEDIA_PATH"
)

// MountPaths holds the three host directories bind-mounted into the engine
// container.
type MountPaths struct {
	// Apps is the directory holding engine app documents.
	Apps string `json:"apps"`

	// Extensions is the directory holding visualization extensions.
	Extensions string `json:"extensions"`

	// Media is the directory holding static content (images, etc.).
	Media string `json:"media"`
}

// All returns the paths in a fixed order (apps, extensions, media).
func (m MountPaths) All() []string {
	return []string{m.Apps, m.Extensions, m.Media}
}

// IsWindowsPlatform reports whether a platform identifier names a
// Windows-like platform. Any identifier starting with "win" matches
// ("windows", "win32").
func IsWindowsPlatform(goos string) bool {
	return strings.HasPrefix(strings.ToLower(goos), "win")
}

// DefaultMountPaths returns the default mount directories for the given
// platform identifier (usually runtime.GOOS). On Windows the directories
// live under ~/Documents, elsewhere directly under the home directory.
//
// The leading "~" is kept as-is: it is handed to compose, which expands it
// when resolving bind-mount sources.
func DefaultMountPaths(goos string) MountPaths {
	base := "~/Qlik/Sense"
	if IsWindowsPlatform(goos) {
		base = "~/Documents/Qlik/Sense"
	}
	return MountPaths{
		Apps:       base + "/Apps",
		Extensions: base + "/Extensions",
		Media:      base + "/Content",
	}
}

// LaunchConfig is the complete set of options for one invocation of the
// launcher. It is created at startup and discarded at process exit.
type LaunchConfig struct {
	// Port is the host port exposed for the engine (PORT).
	Port string `json:"port"`

	// Paths are the bind-mount sources (APPS_PATH, EXTENSIONS_PATH, MEDIA_PATH).
	Paths MountPaths `json:"paths"`

	// Detach runs the containers in the background ("up -d").
	Detach bool `json:"detach"`

	// Stop tears the environment down instead of starting it.
	Stop bool `json:"stop"`

	// Build passes --build to "up" so local images are rebuilt.
	Build bool `json:"build"`

	// ProjectName is the compose project name ("-p").
	ProjectName string `json:"projectName"`

	// ProjectDir is the working directory of the compose process. Relative
	// compose file paths are resolved against it.
	ProjectDir string `json:"projectDir"`

	// ComposeFiles are passed to compose as repeated "-f" flags, in order.
	ComposeFiles []string `json:"composeFiles"`

	// ComposeCommand is the compose binary plus any leading arguments.
	ComposeCommand []string `json:"composeCommand"`

	// EngineVersion pins the engine image tag. When empty the latest tag
	// is looked up from RegistryURL.
	EngineVersion string `json:"engineVersion,omitempty"`

	// RegistryURL is the tags endpoint queried for the latest engine tag.
	RegistryURL string `json:"registryUrl"`

	// RegistryTimeout bounds the tag lookup.
	RegistryTimeout time.Duration `json:"registryTimeout"`

	// SkipPreflight disables the Docker daemon and host port checks.
	SkipPreflight bool `json:"skipPreflight"`
}

// DefaultLaunchConfig returns a LaunchConfig populated with the defaults
// for the given platform identifier.
func DefaultLaunchConfig(goos string) LaunchConfig {
	return LaunchConfig{
		Port:            DefaultPort,
		Paths:           DefaultMountPaths(goos),
		Detach:          true,
		Build:           true,
		ProjectName:     DefaultProjectName,
		ProjectDir:      ".",
		ComposeFiles:    []string{DefaultComposeFile},
		ComposeCommand:  append([]string(nil), DefaultComposeCommand...),
		RegistryURL:     DefaultRegistryURL,
		RegistryTimeout: DefaultRegistryTimeout,
	}
}

// Validate checks the fields the compose invocation depends on.
func (c *LaunchConfig) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port %q: must be a number", c.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: out of range (1-65535)", port)
	}
	if c.ProjectName == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if len(c.ComposeFiles) == 0 {
		return fmt.Errorf("at least one compose file is required")
	}
	if len(c.ComposeCommand) == 0 || c.ComposeCommand[0] == "" {
		return fmt.Errorf("compose command must not be empty")
	}
	return nil
}

// PortNumber returns Port as an integer. It assumes Validate succeeded.
func (c *LaunchConfig) PortNumber() int {
	n, _ := strconv.Atoi(c.Port)
	return n
}

// ComposeEnv returns the variables consumed by the compose definition.
// ENGINE_PARAMS is always empty.
func (c *LaunchConfig) ComposeEnv(engineTag string) map[string]string {
	return map[string]string{
		EnvPort:           c.Port,
		EnvEngineVersion:  engineTag,
		EnvEngineParams:   "",
		EnvAppsPath:       c.Paths.Apps,
		EnvExtensionsPath: c.Paths.Extensions,
		EnvMediaPath:      c.Paths.Media,
	}
}

// ContainerInfo holds runtime information about a Docker container that
// belongs to the compose project. Fetched from the Docker API, not persisted.
type ContainerInfo struct {
	// ContainerID is the Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the container name without the leading "/".
	ContainerName string `json:"containerName"`

	// ServiceName is the compose service the container was created for.
	ServiceName string `json:"serviceName,omitempty"`

	// Image is the image reference the container runs.
	Image string `json:"image"`

	// State is the short Docker state ("running", "exited", "created").
	State string `json:"state"`

	// Status is Docker's human-readable status ("Up 3 minutes").
	Status string `json:"status"`

	// Ports lists published ports as "hostPort->containerPort/proto".
	Ports []string `json:"ports,omitempty"`
}

// IsRunning reports whether the container is in the "running" state.
func (c ContainerInfo) IsRunning() bool {
	return c.State == "running"
}

// ExitCode defines the CLI exit codes. Scripts can rely on them to tell
// why a launch failed.
type ExitCode int

const (
	// ExitSuccess covers a successful run, an explicit stop and a
	// signal-initiated shutdown.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error or a panic.
	ExitGeneralError ExitCode = 1

	// ExitRegistryError indicates the latest engine tag could not be
	// looked up.
	ExitRegistryError ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitPortUnavailable indicates the host port is already in use.
	ExitPortUnavailable ExitCode = 4

	// ExitStartupFailed indicates "compose up" failed. The environment
	// has been torn down by the time this code is returned.
	ExitStartupFailed ExitCode = 5

	// ExitConfigError indicates invalid flags, config file or compose files.
	ExitConfigError ExitCode = 6
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
