package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/shinji-kodama/engine-devenv/internal/compose"
	"github.com/shinji-kodama/engine-devenv/internal/model"
	"github.com/shinji-kodama/engine-devenv/internal/port"
)

// Check is a named precondition evaluated before "compose up". Checks may
// fill in derived configuration, hence the pointer.
type Check struct {
	Name string
	Run  func(ctx context.Context, cfg *model.LaunchConfig) error
}

// Pinger reports whether the container daemon is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProjectLister lists the containers of a compose project.
type ProjectLister interface {
	ListProjectContainers(ctx context.Context, project string) ([]model.ContainerInfo, error)
}

// PortChecker tests whether a TCP port is free.
type PortChecker interface {
	CheckTCP(port int) error
}

// DaemonCheck fails with ExitDockerNotRunning when the daemon does not
// answer a ping.
func DaemonCheck(p Pinger) Check {
	return Check{
		Name: "docker-daemon",
		Run: func(ctx context.Context, _ *model.LaunchConfig) error {
			return p.Ping(ctx)
		},
	}
}

// PortCheck fails with ExitPortUnavailable when the engine's host port is
// taken. When the project already has running containers the port is most
// likely held by the engine itself and compose will reconcile, so the
// check is skipped.
func PortCheck(lister ProjectLister, scanner PortChecker) Check {
	return Check{
		Name: "host-port",
		Run: func(ctx context.Context, cfg *model.LaunchConfig) error {
			containers, err := lister.ListProjectContainers(ctx, cfg.ProjectName)
			if err != nil {
				return err
			}
			for _, c := range containers {
				if c.IsRunning() {
					log.WithField("project", cfg.ProjectName).
						Debug("project already running, skipping port check")
					return nil
				}
			}

			if err := scanner.CheckTCP(cfg.PortNumber()); err != nil {
				return model.WrapCLIError(model.ExitPortUnavailable,
					fmt.Sprintf("cannot expose the engine on port %s", cfg.Port), err)
			}
			return nil
		},
	}
}

// ComposeFilesCheck loads the compose files, failing with ExitConfigError
// when one is missing or malformed. Launcher variables the files never
// interpolate are logged as warnings.
func ComposeFilesCheck() Check {
	return Check{
		Name: "compose-files",
		Run: func(_ context.Context, cfg *model.LaunchConfig) error {
			def, err := compose.LoadDefinition(cfg.ProjectDir, cfg.ComposeFiles)
			if err != nil {
				return model.WrapCLIError(model.ExitConfigError, "invalid compose project", err)
			}
			log.WithFields(log.Fields{
				"files":    strings.Join(def.Files, ","),
				"services": strings.Join(def.Services, ","),
			}).Debug("loaded compose files")
			for _, svc := range def.Services {
				if image, ok := def.Images[svc]; ok {
					log.WithFields(log.Fields{"service": svc, "image": image}).Debug("compose service image")
				}
			}

			for _, name := range []string{
				model.EnvPort, model.EnvEngineVersion, model.EnvAppsPath,
				model.EnvExtensionsPath, model.EnvMediaPath,
			} {
				if !def.References(name) {
					log.WithField("variable", name).Warn("Compose files do not use this variable")
				}
			}
			return nil
		},
	}
}

// MountDirsCheck creates the three mount directories when they do not
// exist, so compose does not create them owned by root. A leading "~" is
// expanded for this purpose only; the variables handed to compose keep the
// configured value. Relative paths are resolved against the project
// directory, which is where compose resolves bind-mount sources.
func MountDirsCheck() Check {
	return Check{
		Name: "mount-dirs",
		Run: func(_ context.Context, cfg *model.LaunchConfig) error {
			home, _ := os.UserHomeDir()
			for _, p := range cfg.Paths.All() {
				dir, err := mountDir(p, home, cfg.ProjectDir)
				if err != nil {
					return model.WrapCLIError(model.ExitConfigError,
						fmt.Sprintf("invalid mount path %q", p), err)
				}
				log.WithField("dir", dir).Debug("ensuring mount directory")
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return model.WrapCLIError(model.ExitConfigError,
						fmt.Sprintf("failed to create mount directory %q", dir), err)
				}
			}
			return nil
		},
	}
}

// mountDir returns the host directory compose will bind-mount for path.
func mountDir(path, home, projectDir string) (string, error) {
	dir, err := expandHome(path, home)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectDir, dir)
	}
	return dir, nil
}

// expandHome replaces a leading "~" or "~/" with home. "~user" forms are
// left untouched.
func expandHome(path, home string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	if home == "" {
		return "", errors.New("home directory is unknown")
	}
	return filepath.Join(home, path[1:]), nil
}

// Ensure port.Scanner satisfies PortChecker.
var _ PortChecker = (*port.Scanner)(nil)
