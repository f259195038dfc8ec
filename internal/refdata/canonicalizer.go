package refdata

import (
	"strings"
	"sync"
)

// Canonicalizer resolves free-text company names to the literal spelling in
// the reference dataset. Indexes are built lazily on first use and are
// read-only afterwards; resolved lookups are memoized for the process
// lifetime.
type Canonicalizer struct {
	companies []Company

	once       sync.Once
	exact      map[string]string
	firstToken map[string]string

	mu    sync.RWMutex
	cache map[string]string
}

func NewCanonicalizer(companies []Company) *Canonicalizer {
	return &Canonicalizer{
		companies: companies,
		cache:     map[string]string{},
	}
}

// Canonicalize returns the dataset spelling for name, or the input unchanged
// when no index entry matches.
func (c *Canonicalizer) Canonicalize(name string) string {
	normalized := normalizeName(name)
	if normalized == "" {
		return name
	}

	c.mu.RLock()
	cached, ok := c.cache[normalized]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	c.once.Do(c.buildIndexes)

	resolved := name
	if canonical, ok := c.exact[normalized]; ok {
		resolved = canonical
	} else if canonical, ok := c.firstToken[firstToken(normalized)]; ok {
		resolved = canonical
	}

	c.mu.Lock()
	c.cache[normalized] = resolved
	c.mu.Unlock()
	return resolved
}

func (c *Canonicalizer) buildIndexes() {
	exact := make(map[string]string, len(c.companies))
	first := make(map[string]string, len(c.companies))

	for _, company := range c.companies {
		normalized := normalizeName(company.Name)
		if normalized == "" {
			continue
		}
		if _, exists := exact[normalized]; !exists {
			exact[normalized] = company.Name
		}
		token := firstToken(normalized)
		// Shortest name wins token collisions so "APPLE" resolves to
		// "APPLE INC" rather than a longer sibling.
		if current, exists := first[token]; !exists || len(company.Name) < len(current) {
			first[token] = company.Name
		}
	}

	c.exact = exact
	c.firstToken = first
}

// normalizeName uppercases, strips punctuation and corporate suffixes, and
// collapses whitespace.
func normalizeName(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '&':
			b.WriteRune(r)
		}
	}
	words := strings.Fields(b.String())
	for len(words) > 1 && corporateSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

var corporateSuffixes = map[string]bool{
	"INC": true, "INCORPORATED": true, "CORP": true, "CORPORATION": true,
	"CO": true, "COMPANY": true, "LTD": true, "LIMITED": true, "PLC": true,
	"LLC": true, "LP": true, "HOLDINGS": true,
}

func firstToken(normalized string) string {
	if idx := strings.IndexByte(normalized, ' '); idx > 0 {
		return normalized[:idx]
	}
	return normalized
}
