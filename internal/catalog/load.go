package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultRoutes []byte

type document struct {
	Routes yaml.Node `yaml:"routes"`
}

// Parse decodes a YAML route table. Routes are declared as a mapping from path to a list of
// permission keys; document order is the prefix matching order.
func Parse(data []byte) ([]Route, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	node := doc.Routes
	if node.Kind == 0 {
		return []Route{}, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("catalog: line %d: routes must be a mapping", node.Line)
	}
	routes := make([]Route, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var perms []string
		switch value.Kind {
		case yaml.SequenceNode:
			if err := value.Decode(&perms); err != nil {
				return nil, fmt.Errorf("catalog: line %d: %w", value.Line, err)
			}
		case yaml.ScalarNode:
			if value.Tag != "!!null" && value.Value != "" {
				perms = []string{value.Value}
			}
		default:
			return nil, fmt.Errorf("catalog: line %d: permissions for %q must be a list", value.Line, key.Value)
		}
		routes = append(routes, Route{Path: key.Value, Permissions: perms})
	}
	return routes, nil
}

// Load reads the route table at path, or the embedded default table when path is empty.
func Load(path string, mode MatchMode) (*RouteCatalog, error) {
	data := defaultRoutes
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		data = raw
	}
	routes, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(routes, mode), nil
}

// Default returns the embedded route table with first-match prefix semantics.
func Default() *RouteCatalog {
	routes, err := Parse(defaultRoutes)
	if err != nil {
		panic(err)
	}
	return New(routes, MatchFirst)
}
