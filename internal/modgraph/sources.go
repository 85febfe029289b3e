package modgraph

import "sort"

// Sources is a memory-backed source provider keyed by module specifier.
type Sources struct {
	bySpecifier map[string]string
}

// NewSources returns an empty provider.
func NewSources() *Sources {
	return &Sources{bySpecifier: map[string]string{}}
}

// Add stores the source text for a specifier, replacing any previous entry.
func (s *Sources) Add(specifier string, source string) {
	s.bySpecifier[specifier] = source
}

// Get returns the source text for a specifier.
func (s *Sources) Get(specifier string) (string, bool) {
	source, ok := s.bySpecifier[specifier]
	return source, ok
}

// Len reports how many modules are loaded.
func (s *Sources) Len() int {
	return len(s.bySpecifier)
}

// Specifiers returns every loaded specifier, sorted for determinism.
func (s *Sources) Specifiers() []string {
	specifiers := make([]string, 0, len(s.bySpecifier))
	for specifier := range s.bySpecifier {
		specifiers = append(specifiers, specifier)
	}
	sort.Strings(specifiers)
	return specifiers
}
