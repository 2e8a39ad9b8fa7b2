package launcher

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/shinji-kodama/engine-devenv/internal/compose"
	"github.com/shinji-kodama/engine-devenv/internal/model"
)

// TagResolver looks up the latest engine image tag.
type TagResolver interface {
	LatestTag(ctx context.Context) (string, error)
}

// Project is the compose project being managed.
type Project interface {
	Name() string
	Up(ctx context.Context, env map[string]string, opts compose.UpOptions) error
	Down(ctx context.Context, env map[string]string) error
}

// Shutdown registers teardown and triggers it. Shutdown must run the
// registered hooks at most once.
type Shutdown interface {
	OnShutdown(name string, fn func(ctx context.Context) error)
	Shutdown(ctx context.Context) error
}

// teardownHook is the name the compose teardown is registered under.
const teardownHook = "compose-down"

// Launcher drives one start or stop of the environment.
type Launcher struct {
	cfg      model.LaunchConfig
	resolver TagResolver
	project  Project
	shutdown Shutdown
	checks   []Check
}

// New creates a Launcher. checks run in order before "up".
func New(cfg model.LaunchConfig, resolver TagResolver, project Project, shutdown Shutdown, checks ...Check) *Launcher {
	return &Launcher{
		cfg:      cfg,
		resolver: resolver,
		project:  project,
		shutdown: shutdown,
		checks:   checks,
	}
}

// Run dispatches to Stop or Start depending on the configuration.
func (l *Launcher) Run(ctx context.Context) error {
	if l.cfg.Stop {
		return l.Stop(ctx)
	}
	return l.Start(ctx)
}

// ResolveTag returns the pinned engine version, or looks up the latest
// one from the registry.
func (l *Launcher) ResolveTag(ctx context.Context) (string, error) {
	if l.cfg.EngineVersion != "" {
		log.WithField("tag", l.cfg.EngineVersion).Debug("using pinned engine version")
		return l.cfg.EngineVersion, nil
	}
	return l.resolver.LatestTag(ctx)
}

// Stop tears the environment down. "up" is never invoked. The engine tag
// is only interpolated into the compose files, so a failed lookup is
// logged and teardown goes ahead without it.
func (l *Launcher) Stop(ctx context.Context) error {
	// Step 1: Look up the tag so the compose files interpolate the same
	// image reference they were started with.
	tag, err := l.ResolveTag(ctx)
	if err != nil {
		log.WithError(err).Warn("Could not look up the engine version, stopping anyway")
	}

	// Step 2: Register "down" and run it through the lifecycle, so the
	// exit-triggered shutdown afterwards does not run it a second time.
	// An interrupt must not cut the teardown short.
	l.registerTeardown(l.cfg.ComposeEnv(tag))
	if err := l.shutdown.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to stop environment %q", l.project.Name()), err)
	}
	return nil
}

// Start brings the environment up. When "up" fails the environment is torn
// down before the error is returned. An interrupt at any point is a normal
// stop and returns nil.
func (l *Launcher) Start(ctx context.Context) error {
	// Step 1: Resolve the engine tag. Nothing is started without one.
	tag, err := l.ResolveTag(ctx)
	if err != nil {
		if interrupted(ctx, err, "engine version lookup") {
			return nil
		}
		return model.WrapCLIError(model.ExitRegistryError,
			"failed to look up the latest engine version", err)
	}

	// Step 2: Run the preflight checks in order. Checks already return
	// CLIErrors carrying their own exit codes.
	for _, check := range l.checks {
		log.WithField("check", check.Name).Debug("running check")
		if err := check.Run(ctx, &l.cfg); err != nil {
			if interrupted(ctx, err, "check "+check.Name) {
				return nil
			}
			return err
		}
	}

	// Step 3: Register teardown before "up", so a signal arriving while
	// compose is still creating containers also removes them.
	env := l.cfg.ComposeEnv(tag)
	l.registerTeardown(env)

	log.Info("Starting containers")
	log.Infof("Mounting apps from '%s'", l.cfg.Paths.Apps)
	log.Infof("Mounting extensions from '%s'", l.cfg.Paths.Extensions)
	log.Infof("Mounting media from '%s'", l.cfg.Paths.Media)
	log.Infof("Starting environment with engine version %s", tag)

	// Step 4: Bring the project up. On failure roll back whatever compose
	// managed to create before reporting the error.
	opts := compose.UpOptions{Detach: l.cfg.Detach, Build: l.cfg.Build}
	if err := l.project.Up(ctx, env, opts); err != nil {
		if serr := l.shutdown.Shutdown(context.WithoutCancel(ctx)); serr != nil {
			log.WithError(serr).Error("Teardown after failed startup also failed")
		}
		// In attached mode "up" only returns once interrupted.
		if interrupted(ctx, err, "compose up") {
			return nil
		}
		return model.WrapCLIError(model.ExitStartupFailed,
			fmt.Sprintf("failed to start environment %q", l.project.Name()), err)
	}

	log.WithField("port", l.cfg.Port).Info("Docker environment is up and running")
	return nil
}

// interrupted reports whether err is the result of the run context being
// cancelled by a signal, logging it at debug level when so.
func interrupted(ctx context.Context, err error, step string) bool {
	if ctx.Err() == nil {
		return false
	}
	log.WithError(err).WithField("step", step).Debug("interrupted")
	return true
}

func (l *Launcher) registerTeardown(env map[string]string) {
	l.shutdown.OnShutdown(teardownHook, func(ctx context.Context) error {
		log.WithField("project", l.project.Name()).Info("Stopping containers")
		return l.project.Down(ctx, env)
	})
}
