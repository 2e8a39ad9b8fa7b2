package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefinition_SingleFile(t *testing.T) {
	def, err := LoadDefinition("testdata", []string{"docker-compose.yml"})
	require.NoError(t, err)

	assert.Equal(t, []string{"engine"}, def.Services)
	assert.Equal(t, "qlikcore/engine:${ENGINE_VERSION}", def.Images["engine"])
	assert.Equal(t, []string{
		"APPS_PATH", "ENGINE_PARAMS", "ENGINE_VERSION", "EXTENSIONS_PATH", "MEDIA_PATH", "PORT",
	}, def.Variables)
	require.Len(t, def.Files, 1)
	assert.True(t, filepath.IsAbs(def.Files[0]))
}

// TestLoadDefinition_MergesFiles verifies services from later files are
// added to those of earlier ones.
func TestLoadDefinition_MergesFiles(t *testing.T) {
	def, err := LoadDefinition("testdata", []string{"./docker-compose.yml", "override.yml"})
	require.NoError(t, err)

	assert.Equal(t, []string{"engine", "playground"}, def.Services)
	assert.True(t, def.References("LOG_LEVEL"))
	assert.True(t, def.References("PORT"))
	assert.False(t, def.References("UNKNOWN"))
	assert.Len(t, def.Files, 2)
}

func TestLoadDefinition_AbsolutePath(t *testing.T) {
	abs, err := filepath.Abs(filepath.Join("testdata", "docker-compose.yml"))
	require.NoError(t, err)

	def, err := LoadDefinition("/nonexistent", []string{abs})
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, def.Files)
}

func TestLoadDefinition_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("services: [\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.yml"), []byte("version: '3'\n"), 0o644))

	tests := []struct {
		name    string
		files   []string
		wantErr string
	}{
		{"missing file", []string{"missing.yml"}, "failed to read"},
		{"invalid yaml", []string{"broken.yml"}, "failed to parse"},
		{"no services", []string{"empty.yml"}, "no services"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDefinition(dir, tt.files)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
