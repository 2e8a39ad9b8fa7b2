// Package cli implements the cobra-based CLI for engine-devenv.
//
// The root command starts (or, with --stop, tears down) the local engine
// environment. The status subcommand lists the project's containers.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/engine-devenv/internal/compose"
	"github.com/shinji-kodama/engine-devenv/internal/config"
	"github.com/shinji-kodama/engine-devenv/internal/docker"
	"github.com/shinji-kodama/engine-devenv/internal/launcher"
	"github.com/shinji-kodama/engine-devenv/internal/lifecycle"
	"github.com/shinji-kodama/engine-devenv/internal/model"
	"github.com/shinji-kodama/engine-devenv/internal/port"
	"github.com/shinji-kodama/engine-devenv/internal/registry"
)

// Global flag variables shared across all subcommands.
var (
	// jsonOutput switches log and command output to JSON.
	jsonOutput bool

	// verbose enables debug logging.
	verbose bool

	// configPath is the JSONC config file. Relative paths are resolved
	// against --project-dir.
	configPath string
)

// Version, Commit and Date are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootFlags holds the flag values of the root command. They are only
// applied to the LaunchConfig when explicitly set, so that the config file
// can supply values in between.
type rootFlags struct {
	port           string
	appsPath       string
	extensionsPath string
	contentPath    string
	detach         bool
	stop           bool
	build          bool
	skipPreflight  bool
	engineVersion  string
	projectDir     string
	composeFiles   []string
	projectName    string
}

// launchFunc starts or stops the environment for a resolved config.
type launchFunc func(ctx context.Context, cfg model.LaunchConfig) error

// NewRootCommand creates the root cobra command with all subcommands
// registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(runLaunch)
}

func newRootCommand(launch launchFunc) *cobra.Command {
	flags := &rootFlags{}
	defaults := model.DefaultLaunchConfig(runtime.GOOS)

	rootCmd := &cobra.Command{
		Use:   "engine-devenv",
		Short: "Start and stop a local Qlik Associative Engine environment",
		Long: `engine-devenv looks up the latest engine image tag on Docker Hub and
starts the compose project in the current directory with it.

The containers are torn down when the command is interrupted, or when it
is run with --stop.

Examples:
  engine-devenv
  engine-devenv --port 19076 --apps-path ./apps
  engine-devenv --detach=false
  engine-devenv --stop`,

		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging()
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveLaunchConfig(cmd, flags, runtime.GOOS)
			if err != nil {
				return err
			}
			return launch(cmd.Context(), cfg)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName,
		"Config file (JSON with comments)")
	rootCmd.PersistentFlags().StringVar(&flags.projectDir, "project-dir", defaults.ProjectDir,
		"Directory containing the compose files")
	rootCmd.PersistentFlags().StringVar(&flags.projectName, "project-name", defaults.ProjectName,
		"Compose project name")

	f := rootCmd.Flags()
	f.StringVarP(&flags.port, "port", "p", defaults.Port, "Host port to expose the engine on")
	f.StringVarP(&flags.appsPath, "apps-path", "a", defaults.Paths.Apps, "Directory mounted as the engine's apps folder")
	f.StringVarP(&flags.extensionsPath, "extensions-path", "e", defaults.Paths.Extensions, "Directory mounted as the extensions folder")
	f.StringVarP(&flags.contentPath, "content-path", "m", defaults.Paths.Media, "Directory mounted as the media content folder")
	f.BoolVar(&flags.detach, "detach", defaults.Detach, "Run the containers in the background")
	f.BoolVarP(&flags.stop, "stop", "t", false, "Stop the environment instead of starting it")
	f.BoolVar(&flags.build, "build", defaults.Build, "Build images before starting the containers")
	f.BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip the Docker daemon and port checks")
	f.StringVar(&flags.engineVersion, "engine-version", "", "Use this engine tag instead of the latest one")
	f.StringArrayVarP(&flags.composeFiles, "compose-file", "f", defaults.ComposeFiles, "Compose file (repeatable)")

	rootCmd.AddCommand(NewStatusCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into exit codes.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		// errors.As rather than a type assertion: teardown failures are
		// joined onto the original error.
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// configureLogging applies the global output flags to logrus.
func configureLogging() {
	if jsonOutput {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// resolveLaunchConfig builds the LaunchConfig from defaults, the config
// file and the flags, in increasing order of precedence.
func resolveLaunchConfig(cmd *cobra.Command, flags *rootFlags, goos string) (model.LaunchConfig, error) {
	cfg := model.DefaultLaunchConfig(goos)
	cfg.ProjectDir = flags.projectDir
	if err := applyConfigFile(cmd, &cfg); err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.Port = flags.port
	}
	if changed("apps-path") {
		cfg.Paths.Apps = flags.appsPath
	}
	if changed("extensions-path") {
		cfg.Paths.Extensions = flags.extensionsPath
	}
	if changed("content-path") {
		cfg.Paths.Media = flags.contentPath
	}
	if changed("detach") {
		cfg.Detach = flags.detach
	}
	if changed("build") {
		cfg.Build = flags.build
	}
	if changed("skip-preflight") {
		cfg.SkipPreflight = flags.skipPreflight
	}
	if changed("engine-version") {
		cfg.EngineVersion = flags.engineVersion
	}
	if changed("compose-file") {
		cfg.ComposeFiles = flags.composeFiles
	}
	if changed("project-name") {
		cfg.ProjectName = flags.projectName
	}
	cfg.Stop = flags.stop

	if err := cfg.Validate(); err != nil {
		return cfg, model.WrapCLIError(model.ExitConfigError, "invalid configuration", err)
	}
	return cfg, nil
}

// applyConfigFile overlays the config file onto cfg. The file is optional
// unless --config was given explicitly.
func applyConfigFile(cmd *cobra.Command, cfg *model.LaunchConfig) error {
	path := configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.ProjectDir, path)
	}
	file, err := config.Load(path, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if file == nil {
		return nil
	}

	log.WithField("file", path).Debug("loaded config file")
	if err := file.Apply(cfg); err != nil {
		return model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("invalid config file %s", path), err)
	}
	return nil
}

// runLaunch wires the launcher and keeps the process in the foreground
// after a successful start until a signal arrives. Teardown runs when
// lifecycle.Run returns, whatever the reason.
func runLaunch(ctx context.Context, cfg model.LaunchConfig) error {
	// Step 1: Build the collaborators. The lifecycle owns signal handling
	// and guarantees compose teardown runs at most once.
	lc := lifecycle.New()
	project := compose.NewProject(compose.NewExecRunner(), cfg.ComposeCommand,
		cfg.ProjectDir, cfg.ProjectName, cfg.ComposeFiles)
	resolver := registry.NewResolver(cfg.RegistryURL, registry.WithTimeout(cfg.RegistryTimeout))

	// Step 2: Assemble the preflight checks. Stop mode runs none; the
	// daemon and port checks need a Docker client and can be skipped.
	var checks []launcher.Check
	if !cfg.Stop {
		checks = []launcher.Check{launcher.ComposeFilesCheck(), launcher.MountDirsCheck()}
		if !cfg.SkipPreflight {
			dc, err := docker.NewClient()
			if err != nil {
				return err
			}
			defer func() { _ = dc.Close() }()
			checks = append([]launcher.Check{launcher.DaemonCheck(dc)}, checks...)
			checks = append(checks, launcher.PortCheck(dc, port.NewScanner()))
		}
	}

	l := launcher.New(cfg, resolver, project, lc, checks...)
	log.WithFields(log.Fields{
		"project": project.Name(),
		"dir":     cfg.ProjectDir,
	}).Debug("launching")

	// Step 3: Start or stop under signal supervision. After a detached
	// start the process stays in the foreground until interrupted; the
	// teardown then runs when lc.Run returns.
	return lc.Run(ctx, func(ctx context.Context) error {
		if err := l.Run(ctx); err != nil {
			return err
		}
		// An attached "up" has already run to completion.
		if cfg.Stop || !cfg.Detach || ctx.Err() != nil {
			return nil
		}
		log.Info("Press Ctrl+C to stop the environment")
		<-ctx.Done()
		return nil
	})
}

// printError outputs an error message in the format selected by --json.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
