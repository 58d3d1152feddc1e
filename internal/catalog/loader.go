// Package catalog loads assessment definitions from YAML files.
package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-assess/internal/survey"
)

//go:embed schema.json
var schemaJSON string

var schema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
})

// Loader loads and caches assessment definitions from the filesystem.
type Loader struct {
	rootDir     string
	assessments map[string]survey.Assessment
	mu          sync.RWMutex
}

// NewLoader creates a loader and loads every definition under rootDir.
// Invalid files are logged and skipped.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:     rootDir,
		assessments: make(map[string]survey.Assessment),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading assessments: %w", err)
	}

	slog.Info("assessments loaded", "count", len(l.assessments), "dir", rootDir)
	return l, nil
}

// Get returns an assessment by ID.
func (l *Loader) Get(id string) (survey.Assessment, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assessments[id]
	return a, ok
}

// All returns every loaded assessment sorted by ID.
func (l *Loader) All() []survey.Assessment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]survey.Assessment, 0, len(l.assessments))
	for _, a := range l.assessments {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b survey.Assessment) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Put registers an assessment directly, replacing any with the same ID.
func (l *Loader) Put(a survey.Assessment) {
	l.mu.Lock()
	l.assessments[a.ID] = a
	l.mu.Unlock()
}

func (l *Loader) loadAll() error {
	return walkDefinitions(l.rootDir, func(path string) error {
		def, err := ParseFile(path)
		if err != nil {
			slog.Warn("skipping invalid assessment definition", "path", path, "error", err)
			return nil
		}

		l.mu.Lock()
		if _, dup := l.assessments[def.ID]; dup {
			slog.Warn("duplicate assessment id, later file wins", "id", def.ID, "path", path)
		}
		l.assessments[def.ID] = def.Assessment()
		l.mu.Unlock()
		return nil
	})
}

// ValidateDir parses every definition under dir and returns one error per
// invalid file.
func ValidateDir(dir string) []error {
	var errs []error
	err := walkDefinitions(dir, func(path string) error {
		if _, err := ParseFile(path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return errs
}

// ParseFile reads, schema-checks and validates a single definition.
func ParseFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	return Parse(data)
}

// Parse schema-checks and validates a YAML definition.
func Parse(data []byte) (Definition, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Definition{}, fmt.Errorf("invalid yaml: %w", err)
	}

	s, err := schema()
	if err != nil {
		return Definition{}, fmt.Errorf("compiling schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return Definition{}, fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Definition{}, fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("decoding definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func walkDefinitions(root string, fn func(path string) error) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return fn(path)
		}
		return nil
	})
}
