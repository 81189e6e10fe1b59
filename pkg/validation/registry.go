// Package validation compiles JSON Schemas and gates request bodies against them.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const registryLogPrefix = "validation:registry"

// Registry holds compiled schemas keyed by ref. Schemas are added during
// setup; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*jsonschema.Schema)}
}

// AddSchema compiles a JSON Schema document and registers it under ref.
func (r *Registry) AddSchema(ref string, doc []byte) error {
	if ref == "" {
		return fmt.Errorf("%s - empty schema ref", registryLogPrefix)
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("%s - unmarshal schema %q: %w", registryLogPrefix, ref, err)
	}

	url := "resource-bus://schemas/" + ref
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, parsed); err != nil {
		return fmt.Errorf("%s - add schema %q: %w", registryLogPrefix, ref, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("%s - compile schema %q: %w", registryLogPrefix, ref, err)
	}

	r.mu.Lock()
	r.schemas[ref] = compiled
	r.mu.Unlock()
	slog.Debug(fmt.Sprintf("%s - Registered schema %s", registryLogPrefix, ref))
	return nil
}

// MustAddSchema is like AddSchema but panics on error.
func (r *Registry) MustAddSchema(ref string, doc string) *Registry {
	if err := r.AddSchema(ref, []byte(doc)); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the compiled schema registered under ref.
func (r *Registry) Lookup(ref string) (*jsonschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[ref]
	return s, ok
}

// Refs returns the registered refs in sorted order.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]string, 0, len(r.schemas))
	for ref := range r.schemas {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// LoadDir registers every .json, .yaml and .yml file in dir. The ref of a
// schema is its file name without the extension.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%s - failed to read schema dir %s: %w", registryLogPrefix, dir, err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%s - failed to read %s: %w", registryLogPrefix, path, err)
		}
		if ext != ".json" {
			if data, err = yamlToJSON(data); err != nil {
				return fmt.Errorf("%s - failed to parse %s: %w", registryLogPrefix, path, err)
			}
		}
		ref := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := r.AddSchema(ref, data); err != nil {
			return err
		}
		loaded++
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d schemas from %s", registryLogPrefix, loaded, dir))
	return nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
