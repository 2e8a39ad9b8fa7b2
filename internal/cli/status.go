package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/engine-devenv/internal/docker"
	"github.com/shinji-kodama/engine-devenv/internal/model"
)

// NewStatusCommand creates the "status" command, which lists the compose
// project's containers as reported by the Docker daemon.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the containers of the engine environment",
		Long: `List the containers docker compose created for the project, running
or not, with their state and published ports.

Examples:
  engine-devenv status
  engine-devenv status --project-name my-engine --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := statusProjectName(cmd)
			if err != nil {
				return err
			}

			dc, err := docker.NewClient()
			if err != nil {
				return err
			}
			defer func() { _ = dc.Close() }()

			if err := dc.Ping(cmd.Context()); err != nil {
				return err
			}

			containers, err := dc.ListProjectContainers(cmd.Context(), project)
			if err != nil {
				return err
			}
			log.WithField("project", project).Debugf("found %d containers", len(containers))

			return printStatus(cmd.OutOrStdout(), project, containers, IsJSONOutput())
		},
	}
}

// statusProjectName resolves the project name the same way the root
// command does: flag, then config file, then default.
func statusProjectName(cmd *cobra.Command) (string, error) {
	cfg := model.DefaultLaunchConfig(runtime.GOOS)
	dir, err := cmd.Flags().GetString("project-dir")
	if err != nil {
		return "", err
	}
	cfg.ProjectDir = dir

	if err := applyConfigFile(cmd, &cfg); err != nil {
		return "", err
	}
	if cmd.Flags().Changed("project-name") {
		name, err := cmd.Flags().GetString("project-name")
		if err != nil {
			return "", err
		}
		cfg.ProjectName = name
	}
	return cfg.ProjectName, nil
}

// projectState summarises a project's containers as "running", "stopped"
// or "absent".
func projectState(containers []model.ContainerInfo) string {
	switch {
	case len(containers) == 0:
		return "absent"
	case docker.AnyRunning(containers):
		return "running"
	default:
		return "stopped"
	}
}

// statusJSON is the JSON output of the status command.
type statusJSON struct {
	Project    string                `json:"project"`
	State      string                `json:"state"`
	Containers []model.ContainerInfo `json:"containers"`
}

func printStatus(w io.Writer, project string, containers []model.ContainerInfo, asJSON bool) error {
	if asJSON {
		result := statusJSON{
			Project:    project,
			State:      projectState(containers),
			Containers: containers,
		}
		// Empty slice so the output shows [] rather than null.
		if result.Containers == nil {
			result.Containers = []model.ContainerInfo{}
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if len(containers) == 0 {
		_, err := fmt.Fprintf(w, "No containers found for project %q.\n", project)
		return err
	}

	fmt.Fprintf(w, "Project %s is %s\n\n", project, projectState(containers))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tNAME\tSTATE\tSTATUS\tPORTS")
	for _, c := range containers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			dashIfEmpty(c.ServiceName), c.ContainerName, c.State, c.Status, FormatPortsList(c.Ports))
	}
	return tw.Flush()
}

// FormatPortsList joins published ports with commas, or returns "-" when
// there are none.
func FormatPortsList(ports []string) string {
	if len(ports) == 0 {
		return "-"
	}
	return strings.Join(ports, ",")
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
