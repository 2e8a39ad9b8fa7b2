package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/engine-devenv/internal/model"
	"github.com/shinji-kodama/engine-devenv/internal/port"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeLister struct {
	containers []model.ContainerInfo
	err        error
	project    string
}

func (f *fakeLister) ListProjectContainers(_ context.Context, project string) ([]model.ContainerInfo, error) {
	f.project = project
	return f.containers, f.err
}

type fakePorts struct {
	err     error
	checked []int
}

func (f *fakePorts) CheckTCP(p int) error {
	f.checked = append(f.checked, p)
	return f.err
}

func TestDaemonCheck(t *testing.T) {
	cfg := model.DefaultLaunchConfig("linux")

	require.NoError(t, DaemonCheck(fakePinger{}).Run(context.Background(), &cfg))

	cause := model.NewCLIError(model.ExitDockerNotRunning, "not running")
	assert.Equal(t, cause, DaemonCheck(fakePinger{err: cause}).Run(context.Background(), &cfg))
}

func TestPortCheck_FreePort(t *testing.T) {
	cfg := model.DefaultLaunchConfig("linux")
	lister := &fakeLister{}
	ports := &fakePorts{}

	require.NoError(t, PortCheck(lister, ports).Run(context.Background(), &cfg))

	assert.Equal(t, "core-dev", lister.project)
	assert.Equal(t, []int{9076}, ports.checked)
}

func TestPortCheck_InUse(t *testing.T) {
	cfg := model.DefaultLaunchConfig("linux")
	ports := &fakePorts{err: &port.InUseError{Port: 9076, Suggestion: 9077}}

	err := PortCheck(&fakeLister{}, ports).Run(context.Background(), &cfg)

	assert.Equal(t, model.ExitPortUnavailable, exitCode(t, err))
	assert.Contains(t, err.Error(), "try --port 9077")
}

// TestPortCheck_SkippedWhenProjectRunning covers a restart while the
// previous engine still holds the port.
func TestPortCheck_SkippedWhenProjectRunning(t *testing.T) {
	cfg := model.DefaultLaunchConfig("linux")
	lister := &fakeLister{containers: []model.ContainerInfo{{ServiceName: "engine", State: "running"}}}
	ports := &fakePorts{err: errors.New("should not be called")}

	require.NoError(t, PortCheck(lister, ports).Run(context.Background(), &cfg))
	assert.Empty(t, ports.checked)
}

func TestPortCheck_ListError(t *testing.T) {
	cfg := model.DefaultLaunchConfig("linux")
	cause := model.NewCLIError(model.ExitDockerNotRunning, "list failed")

	err := PortCheck(&fakeLister{err: cause}, &fakePorts{}).Run(context.Background(), &cfg)

	assert.Equal(t, model.ExitDockerNotRunning, exitCode(t, err))
}

func TestComposeFilesCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte(`
services:
  engine:
    image: qlikcore/engine:${ENGINE_VERSION}
    ports:
      - "${PORT}:9076"
`), 0o644))

	cfg := model.DefaultLaunchConfig("linux")
	cfg.ProjectDir = dir
	require.NoError(t, ComposeFilesCheck().Run(context.Background(), &cfg))

	cfg.ComposeFiles = []string{"missing.yml"}
	err := ComposeFilesCheck().Run(context.Background(), &cfg)
	assert.Equal(t, model.ExitConfigError, exitCode(t, err))
}

func TestMountDirsCheck_CreatesDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := model.DefaultLaunchConfig("linux")
	cfg.Paths = model.MountPaths{
		Apps:       filepath.Join(base, "apps"),
		Extensions: filepath.Join(base, "nested", "extensions"),
		Media:      filepath.Join(base, "media"),
	}

	require.NoError(t, MountDirsCheck().Run(context.Background(), &cfg))

	for _, p := range cfg.Paths.All() {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestMountDirsCheck_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cfg := model.DefaultLaunchConfig("linux")
	require.NoError(t, MountDirsCheck().Run(context.Background(), &cfg))

	_, err := os.Stat(filepath.Join(home, "Qlik", "Sense", "Apps"))
	assert.NoError(t, err)
	assert.Equal(t, "~/Qlik/Sense/Apps", cfg.Paths.Apps, "the configured value is passed to compose unchanged")
}

// TestMountDirsCheck_RelativeToProjectDir verifies relative mount paths
// are created where compose will look for them, not in the working
// directory of the launcher.
func TestMountDirsCheck_RelativeToProjectDir(t *testing.T) {
	cwd := t.TempDir()
	t.Chdir(cwd)
	project := t.TempDir()

	cfg := model.DefaultLaunchConfig("linux")
	cfg.ProjectDir = project
	cfg.Paths = model.MountPaths{
		Apps:       "./apps",
		Extensions: "data/extensions",
		Media:      filepath.Join(project, "media"),
	}

	require.NoError(t, MountDirsCheck().Run(context.Background(), &cfg))

	for _, dir := range []string{"apps", filepath.Join("data", "extensions"), "media"} {
		info, err := os.Stat(filepath.Join(project, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
	_, err := os.Stat(filepath.Join(cwd, "apps"))
	assert.True(t, os.IsNotExist(err), "nothing may be created in the working directory")
	assert.Equal(t, "./apps", cfg.Paths.Apps, "the configured value is passed to compose unchanged")
}

func TestMountDir(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "home relative", path: "~/Qlik/Sense/Apps", want: "/home/dev/Qlik/Sense/Apps"},
		{name: "absolute", path: "/srv/apps", want: "/srv/apps"},
		{name: "dot relative", path: "./apps", want: "/work/engine/apps"},
		{name: "bare relative", path: "content/media", want: "/work/engine/content/media"},
		{name: "parent relative", path: "../shared/apps", want: "/work/shared/apps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mountDir(filepath.FromSlash(tt.path), "/home/dev", "/work/engine")
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestExpandHome(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"~", "/home/dev"},
		{"~/Qlik/Sense/Apps", "/home/dev/Qlik/Sense/Apps"},
		{"/abs/path", "/abs/path"},
		{"relative/path", "relative/path"},
		{"~other/apps", "~other/apps"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := expandHome(tt.path, "/home/dev")
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}

	_, err := expandHome("~/apps", "")
	assert.Error(t, err)
}
