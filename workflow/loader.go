package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Definition is a workflow stored on disk.
type Definition struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Request converts the definition into an execute request.
func (d *Definition) Request() *ExecuteRequest {
	edges := d.Edges
	if edges == nil {
		edges = []Edge{}
	}
	return &ExecuteRequest{WorkflowID: d.ID, Nodes: d.Nodes, Edges: edges}
}

// Loader finds workflow definitions by name.
type Loader interface {
	Load(name string) (*Definition, error)
}

// FileLoader loads definitions from YAML or JSON files in a set of directories.
type FileLoader struct {
	dirs []string
}

// NewFileLoader creates a loader searching dirs in order.
func NewFileLoader(dirs ...string) *FileLoader {
	return &FileLoader{dirs: dirs}
}

// Load searches each directory for {name}.yaml, {name}.yml or {name}.json.
func (l *FileLoader) Load(name string) (*Definition, error) {
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml", ".json"} {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("workflow: %q not found in %v", name, l.dirs)
}

// LoadFile reads a definition from a YAML or JSON file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Parse(data, strings.ToLower(filepath.Ext(path)) != ".json")
	if err != nil {
		return nil, fmt.Errorf("workflow: parsing %s: %w", path, err)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// Parse decodes a definition. YAML documents are normalised to JSON so
// node payloads go through the same typed decoding as API requests.
func Parse(data []byte, isYAML bool) (*Definition, error) {
	if isYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		normalised, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		data = normalised
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}
