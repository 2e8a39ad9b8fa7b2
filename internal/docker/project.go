package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/shinji-kodama/engine-devenv/internal/model"
)

// Labels set by docker compose on every container it creates.
const (
	LabelComposeProject = "com.docker.compose.project"
	LabelComposeService = "com.docker.compose.service"
)

// containerLister is the slice of the SDK client ListProjectContainers
// needs; tests substitute a fake.
type containerLister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

// ListProjectContainers returns all containers, running or not, that compose
// created for the named project, sorted by service then container name.
func (c *Client) ListProjectContainers(ctx context.Context, project string) ([]model.ContainerInfo, error) {
	return listProjectContainers(ctx, c.inner, project)
}

func listProjectContainers(ctx context.Context, lister containerLister, project string) ([]model.ContainerInfo, error) {
	// Filter server-side on the project label.
	summaries, err := lister.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", LabelComposeProject+"="+project)),
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to list containers of project %q", project),
			err,
		)
	}

	result := make([]model.ContainerInfo, 0, len(summaries))
	for _, s := range summaries {
		result = append(result, summaryToInfo(s))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ServiceName != result[j].ServiceName {
			return result[i].ServiceName < result[j].ServiceName
		}
		return result[i].ContainerName < result[j].ContainerName
	})
	return result, nil
}

// AnyRunning reports whether at least one container is running.
func AnyRunning(containers []model.ContainerInfo) bool {
	for _, c := range containers {
		if c.IsRunning() {
			return true
		}
	}
	return false
}

// summaryToInfo maps an API container summary to the domain type. Docker
// prefixes container names with "/", which is stripped.
func summaryToInfo(s container.Summary) model.ContainerInfo {
	name := ""
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   s.ID,
		ContainerName: name,
		ServiceName:   s.Labels[LabelComposeService],
		Image:         s.Image,
		State:         string(s.State),
		Status:        s.Status,
		Ports:         formatPorts(s.Ports),
	}
}

// formatPorts renders published ports as "hostPort->privatePort/type",
// deduplicating the IPv4/IPv6 pair Docker reports for each binding.
// Unpublished ports are skipped.
func formatPorts(ports []container.Port) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range ports {
		if p.PublicPort == 0 {
			continue
		}
		s := fmt.Sprintf("%d->%d/%s", p.PublicPort, p.PrivatePort, p.Type)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
