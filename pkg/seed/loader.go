// Package seed loads initial resource documents from a JSON or YAML file and
// writes them through a store or a resource client.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const logPrefix = "seed:loader"

// File is a seed file: the resource it belongs to and its documents keyed by id.
type File struct {
	Resource  string                 `json:"resource" yaml:"resource"`
	Documents map[string]interface{} `json:"documents" yaml:"documents"`
}

// WriteFunc stores one document.
type WriteFunc func(ctx context.Context, id string, body json.RawMessage) error

// Load reads the first readable seed file. It tries paths in order: first any
// paths passed in, then SEED_FILE env. Returns nil when none exists; an
// unreadable or malformed file that does exist is an error.
func Load(paths ...string) (*File, error) {
	all := make([]string, 0, len(paths)+1)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("SEED_FILE"); envPath != "" {
		all = append(all, envPath)
	}

	for _, p := range all {
		data, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read seed file %s: %w", logPrefix, p, err)
		}
		f, err := Parse(p, data)
		if err != nil {
			return nil, err
		}
		slog.Info(fmt.Sprintf("%s - Loaded %d seed documents from %s", logPrefix, len(f.Documents), p))
		return f, nil
	}
	return nil, nil
}

// Parse decodes seed data; files ending in .yaml or .yml are YAML, anything else JSON.
func Parse(name string, data []byte) (*File, error) {
	var f File
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%s - failed to parse %s: %w", logPrefix, name, err)
		}
	default:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%s - failed to parse %s: %w", logPrefix, name, err)
		}
	}
	return &f, nil
}

// IDs returns the document ids in sorted order.
func (f *File) IDs() []string {
	ids := make([]string, 0, len(f.Documents))
	for id := range f.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Apply writes every document in id order and returns how many were written.
// A file naming another resource is rejected before anything is written.
func (f *File) Apply(ctx context.Context, resourceName string, write WriteFunc) (int, error) {
	if f.Resource != "" && f.Resource != resourceName {
		return 0, fmt.Errorf("%s - seed file is for %q, not %q", logPrefix, f.Resource, resourceName)
	}
	written := 0
	for _, id := range f.IDs() {
		body, err := json.Marshal(f.Documents[id])
		if err != nil {
			return written, fmt.Errorf("%s - encode document %s: %w", logPrefix, id, err)
		}
		if err := write(ctx, id, body); err != nil {
			return written, fmt.Errorf("%s - write document %s: %w", logPrefix, id, err)
		}
		written++
	}
	slog.Info(fmt.Sprintf("%s - Seeded %d documents into %s", logPrefix, written, resourceName))
	return written, nil
}
