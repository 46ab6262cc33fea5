package desktop

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/lumendesk/backend/internal/shared/geo"
)

// Icon is a launchable desktop icon. Icons are what the interpreter's
// simulated clicks land on when an app must be opened visually.
type Icon struct {
	Kind  AppKind   `json:"kind" yaml:"kind" toml:"kind"`
	Label string    `json:"label" yaml:"label" toml:"label"`
	Pos   geo.Point `json:"pos" yaml:"pos" toml:"pos"`
}

//go:embed icons.yaml
var defaultIconManifest []byte

type iconManifest struct {
	Icons []Icon `yaml:"icons" toml:"icons"`
}

// DefaultIcons returns the built-in icon layout.
func DefaultIcons() []Icon {
	icons, err := parseIcons(defaultIconManifest)
	if err != nil {
		// The embedded manifest is validated by tests; an error here
		// means a broken build, not a runtime condition.
		panic(fmt.Sprintf("embedded icon manifest invalid: %v", err))
	}
	return icons
}

// LoadIcons reads an icon layout manifest from disk, falling back to the
// embedded default when path is empty. Manifests are YAML by default;
// a .toml extension selects TOML.
func LoadIcons(path string) ([]Icon, error) {
	if path == "" {
		return DefaultIcons(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read icon manifest: %w", err)
	}
	if filepath.Ext(path) == ".toml" {
		return parseIconsTOML(data)
	}
	return parseIcons(data)
}

func parseIcons(data []byte) ([]Icon, error) {
	var m iconManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse icon manifest: %w", err)
	}
	return validateIcons(m.Icons)
}

func parseIconsTOML(data []byte) ([]Icon, error) {
	var m iconManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse icon manifest: %w", err)
	}
	return validateIcons(m.Icons)
}

func validateIcons(icons []Icon) ([]Icon, error) {
	if len(icons) == 0 {
		return nil, fmt.Errorf("icon manifest defines no icons")
	}
	for _, ic := range icons {
		if !ic.Kind.Valid() {
			return nil, fmt.Errorf("icon manifest: unknown app kind %q", ic.Kind)
		}
	}
	return icons, nil
}
