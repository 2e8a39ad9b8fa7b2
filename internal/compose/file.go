package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// composeFile is the subset of a compose file the launcher inspects.
// Fields with several accepted shapes (build, ports, environment) are not
// decoded; compose itself validates them.
type composeFile struct {
	Name     string                    `yaml:"name"`
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image         string `yaml:"image"`
	ContainerName string `yaml:"container_name"`
}

// Definition summarizes the compose files of a project.
type Definition struct {
	// Files are the absolute paths of the compose files, in merge order.
	Files []string

	// Services are the service names across all files, sorted.
	Services []string

	// Images maps a service to its image reference, when one is given.
	Images map[string]string

	// Variables are the names referenced with ${NAME} interpolation, sorted.
	Variables []string
}

// References reports whether the definition interpolates the variable.
func (d *Definition) References(name string) bool {
	i := sort.SearchStrings(d.Variables, name)
	return i < len(d.Variables) && d.Variables[i] == name
}

// varRef matches ${NAME}, ${NAME:-default} and ${NAME?err} references.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)`)

// LoadDefinition reads the compose files, resolved relative to dir, and
// merges their services. Every file must exist and parse; together they
// must define at least one service.
func LoadDefinition(dir string, files []string) (*Definition, error) {
	def := &Definition{Images: make(map[string]string)}
	services := make(map[string]struct{})
	vars := make(map[string]struct{})

	for _, f := range files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve compose file %q: %w", f, err)
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to read compose file %q: %w", f, err)
		}

		var cf composeFile
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("failed to parse compose file %q: %w", f, err)
		}

		for name, svc := range cf.Services {
			services[name] = struct{}{}
			if svc.Image != "" {
				def.Images[name] = svc.Image
			}
		}
		for _, m := range varRef.FindAllSubmatch(data, -1) {
			vars[string(m[1])] = struct{}{}
		}
		def.Files = append(def.Files, abs)
	}

	if len(services) == 0 {
		return nil, fmt.Errorf("no services defined in compose files %v", files)
	}

	def.Services = sortedKeys(services)
	def.Variables = sortedKeys(vars)
	return def, nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
