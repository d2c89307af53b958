// Package registry holds the static partitioning of course sources into
// numbered batches.
package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"course-harvest/internal/domain"
)

// ErrNotFound is returned for batch numbers outside the configured range.
var ErrNotFound = errors.New("registry: batch not found")

// Registry is read-only after construction.
type Registry struct {
	batches []domain.SourceBatch
}

// New validates batches and returns a registry. Batch numbers must run
// contiguously from 1 in slice order.
func New(batches []domain.SourceBatch) (*Registry, error) {
	if len(batches) == 0 {
		return nil, errors.New("registry: no batches configured")
	}
	for i, b := range batches {
		if b.Number != i+1 {
			return nil, fmt.Errorf("registry: batch at position %d has number %d, want %d", i, b.Number, i+1)
		}
		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("registry: batch %d has no name", b.Number)
		}
		if len(b.Providers) == 0 {
			return nil, fmt.Errorf("registry: batch %d has no providers", b.Number)
		}
		seen := make(map[string]bool, len(b.Providers))
		for _, p := range b.Providers {
			slug := strings.TrimSpace(p.Slug)
			if slug == "" || strings.TrimSpace(p.URL) == "" {
				return nil, fmt.Errorf("registry: batch %d provider %q needs slug and url", b.Number, p.Name)
			}
			if seen[slug] {
				return nil, fmt.Errorf("registry: batch %d duplicate slug %q", b.Number, slug)
			}
			seen[slug] = true
		}
	}

	// keep our own copy so callers can't mutate the configuration
	out := make([]domain.SourceBatch, len(batches))
	for i, b := range batches {
		b.Providers = append([]domain.ProviderDescriptor(nil), b.Providers...)
		out[i] = b
	}
	return &Registry{batches: out}, nil
}

// Default returns the built-in regional batches.
func Default() *Registry {
	r, err := New(defaultBatches)
	if err != nil {
		panic(err)
	}
	return r
}

type fileFormat struct {
	Batches []domain.SourceBatch `yaml:"batches"`
}

// LoadFile reads batch definitions from a YAML file.
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	return New(f.Batches)
}

// List returns every batch in number order.
func (r *Registry) List() []domain.SourceBatch {
	out := make([]domain.SourceBatch, len(r.batches))
	copy(out, r.batches)
	return out
}

// Get returns batch n or an error wrapping ErrNotFound.
func (r *Registry) Get(n int) (domain.SourceBatch, error) {
	if n < 1 || n > len(r.batches) {
		return domain.SourceBatch{}, fmt.Errorf("%w: %d (valid range 1-%d)", ErrNotFound, n, len(r.batches))
	}
	b := r.batches[n-1]
	b.Providers = append([]domain.ProviderDescriptor(nil), b.Providers...)
	return b, nil
}

// Range returns the smallest and largest valid batch numbers.
func (r *Registry) Range() (int, int) {
	return 1, len(r.batches)
}
