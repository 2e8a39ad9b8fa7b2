package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/engine-devenv/internal/model"
)

// fakeLister returns canned summaries and records the options it got.
type fakeLister struct {
	summaries []container.Summary
	err       error
	got       container.ListOptions
}

func (f *fakeLister) ContainerList(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
	f.got = opts
	return f.summaries, f.err
}

func TestListProjectContainers_FiltersByProjectLabel(t *testing.T) {
	lister := &fakeLister{}

	_, err := listProjectContainers(context.Background(), lister, "core-dev")
	require.NoError(t, err)

	assert.True(t, lister.got.All, "stopped containers must be listed too")
	assert.Equal(t, []string{"com.docker.compose.project=core-dev"}, lister.got.Filters.Get("label"))
}

func TestListProjectContainers_MapsAndSorts(t *testing.T) {
	lister := &fakeLister{summaries: []container.Summary{
		{
			ID:     "bbb",
			Names:  []string{"/core-dev-playground-1"},
			Image:  "playground:latest",
			State:  "exited",
			Status: "Exited (0) 2 minutes ago",
			Labels: map[string]string{LabelComposeService: "playground"},
		},
		{
			ID:     "aaa",
			Names:  []string{"/core-dev-engine-1"},
			Image:  "qlikcore/engine:12.34.5",
			State:  "running",
			Status: "Up 2 minutes",
			Labels: map[string]string{LabelComposeService: "engine"},
			Ports: []container.Port{
				{IP: "0.0.0.0", PrivatePort: 9076, PublicPort: 9076, Type: "tcp"},
				{IP: "::", PrivatePort: 9076, PublicPort: 9076, Type: "tcp"},
				{PrivatePort: 9090, Type: "tcp"},
			},
		},
	}}

	got, err := listProjectContainers(context.Background(), lister, "core-dev")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.ContainerInfo{
		ContainerID:   "aaa",
		ContainerName: "core-dev-engine-1",
		ServiceName:   "engine",
		Image:         "qlikcore/engine:12.34.5",
		State:         "running",
		Status:        "Up 2 minutes",
		Ports:         []string{"9076->9076/tcp"},
	}, got[0])
	assert.Equal(t, "playground", got[1].ServiceName)
	assert.Empty(t, got[1].Ports)
}

func TestListProjectContainers_Error(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}

	_, err := listProjectContainers(context.Background(), lister, "core-dev")

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitDockerNotRunning, cliErr.Code)
	assert.Contains(t, err.Error(), "core-dev")
}

func TestSummaryToInfo_NoNames(t *testing.T) {
	info := summaryToInfo(container.Summary{ID: "abc", State: "created"})
	assert.Empty(t, info.ContainerName)
	assert.Empty(t, info.ServiceName)
	assert.Equal(t, "created", info.State)
}

func TestAnyRunning(t *testing.T) {
	assert.False(t, AnyRunning(nil))
	assert.False(t, AnyRunning([]model.ContainerInfo{{State: "exited"}}))
	assert.True(t, AnyRunning([]model.ContainerInfo{{State: "exited"}, {State: "running"}}))
}
