// Package patterns holds the per-domain keyword sets and phrase
// indicators consumed by the classifier. Pure data, read-heavy,
// write-rare.
package patterns

import (
	"fmt"
	"sort"
	"sync"
)

// DomainPattern is one business vertical's classification material.
type DomainPattern struct {
	Domain      string   `json:"domain" yaml:"domain"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Phrases     []string `json:"phrases,omitempty" yaml:"phrases,omitempty"`
	Indicators  []string `json:"indicators,omitempty" yaml:"indicators,omitempty"`
}

// Repository stores domain patterns. Reads are safe during mutation;
// two concurrent Add calls for the same domain key race and must be
// serialized by the caller.
type Repository struct {
	mu       sync.RWMutex
	patterns map[string]DomainPattern
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		patterns: make(map[string]DomainPattern),
	}
}

// Add registers or replaces a domain's pattern set.
func (r *Repository) Add(p DomainPattern) error {
	if p.Domain == "" {
		return fmt.Errorf("domain key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns[p.Domain] = copyPattern(p)
	return nil
}

// Get returns the full pattern set for a domain.
func (r *Repository) Get(domain string) (DomainPattern, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patterns[domain]
	if !ok {
		return DomainPattern{}, false
	}
	return copyPattern(p), true
}

// Keywords returns a domain's keyword set (nil for unknown domains).
func (r *Repository) Keywords(domain string) []string {
	p, ok := r.Get(domain)
	if !ok {
		return nil
	}
	return p.Keywords
}

// Phrases returns a domain's phrase set.
func (r *Repository) Phrases(domain string) []string {
	p, ok := r.Get(domain)
	if !ok {
		return nil
	}
	return p.Phrases
}

// Indicators returns a domain's indicator set.
func (r *Repository) Indicators(domain string) []string {
	p, ok := r.Get(domain)
	if !ok {
		return nil
	}
	return p.Indicators
}

// ListDomains returns the known domain keys, sorted for deterministic
// iteration by the classifier.
func (r *Repository) ListDomains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domains := make([]string, 0, len(r.patterns))
	for key := range r.patterns {
		domains = append(domains, key)
	}
	sort.Strings(domains)
	return domains
}

func copyPattern(p DomainPattern) DomainPattern {
	out := p
	out.Keywords = append([]string(nil), p.Keywords...)
	out.Phrases = append([]string(nil), p.Phrases...)
	out.Indicators = append([]string(nil), p.Indicators...)
	return out
}
