package compose

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// UpOptions controls the "up" invocation.
type UpOptions struct {
	// Detach adds "-d" so containers run in the background.
	Detach bool

	// Build adds "--build" so images with a build section are rebuilt.
	Build bool
}

// Project is a compose project: a name, the files that define it and the
// directory compose runs in.
type Project struct {
	runner  Runner
	command []string
	dir     string
	name    string
	files   []string
}

// NewProject creates a Project. command is the compose binary followed by
// any leading arguments, e.g. []string{"docker", "compose"}.
func NewProject(runner Runner, command []string, dir, name string, files []string) *Project {
	return &Project{
		runner:  runner,
		command: append([]string(nil), command...),
		dir:     dir,
		name:    name,
		files:   append([]string(nil), files...),
	}
}

// Name returns the compose project name.
func (p *Project) Name() string {
	return p.name
}

// Up brings the project up. It blocks until compose exits, which in
// attached mode is when the containers stop.
func (p *Project) Up(ctx context.Context, env map[string]string, opts UpOptions) error {
	log.WithFields(log.Fields{"project": p.name, "detach": opts.Detach}).Debug("compose up")
	if err := p.run(ctx, env, p.UpArgs(opts)); err != nil {
		return fmt.Errorf("compose up %q: %w", p.name, err)
	}
	return nil
}

// Down stops and removes the project's containers and networks, including
// containers for services no longer in the compose files.
func (p *Project) Down(ctx context.Context, env map[string]string) error {
	log.WithField("project", p.name).Debug("compose down")
	if err := p.run(ctx, env, p.DownArgs()); err != nil {
		return fmt.Errorf("compose down %q: %w", p.name, err)
	}
	return nil
}

// UpArgs returns the arguments following the compose command for "up".
func (p *Project) UpArgs(opts UpOptions) []string {
	args := p.baseArgs()
	args = append(args, "up")
	if opts.Detach {
		args = append(args, "-d")
	}
	if opts.Build {
		args = append(args, "--build")
	}
	return args
}

// DownArgs returns the arguments following the compose command for "down".
func (p *Project) DownArgs() []string {
	return append(p.baseArgs(), "down", "--remove-orphans")
}

// baseArgs builds the "-f file... -p project" prefix shared by all
// subcommands. Compose merges the files in order, later ones taking
// precedence.
func (p *Project) baseArgs() []string {
	args := make([]string, 0, len(p.files)*2+2)
	for _, f := range p.files {
		args = append(args, "-f", f)
	}
	return append(args, "-p", p.name)
}

func (p *Project) run(ctx context.Context, env map[string]string, args []string) error {
	full := make([]string, 0, len(p.command)-1+len(args))
	full = append(full, p.command[1:]...)
	full = append(full, args...)
	return p.runner.Run(ctx, Command{
		Name: p.command[0],
		Args: full,
		Dir:  p.dir,
		Env:  env,
	})
}
