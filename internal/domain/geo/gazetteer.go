// internal/domain/geo/gazetteer.go

package geo

import (
	"context"
	"fmt"
	"strings"
)

// MemoryGazetteer is an immutable in-memory Gazetteer
type MemoryGazetteer struct {
	entries []LocationEntry
	byKey   map[string]Metadata
}

// NewMemoryGazetteer builds a gazetteer, rejecting duplicate canonical names
func NewMemoryGazetteer(entries []LocationEntry) (*MemoryGazetteer, error) {
	g := &MemoryGazetteer{
		entries: make([]LocationEntry, 0, len(entries)),
		byKey:   make(map[string]Metadata, len(entries)),
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("entry %d: empty canonical name", i)
		}
		if strings.TrimSpace(e.Region) == "" {
			return nil, fmt.Errorf("entry %q: empty region", name)
		}

		norm := strings.ToLower(name)
		if _, dup := seen[norm]; dup {
			return nil, fmt.Errorf("duplicate canonical name %q", name)
		}
		seen[norm] = struct{}{}

		e.Name = name
		e.AlternateNames = append([]string(nil), e.AlternateNames...)
		g.entries = append(g.entries, e)
		g.byKey[lookupKey(name, e.Region)] = e.Metadata
	}

	return g, nil
}

// Entries returns a copy of the entries
func (g *MemoryGazetteer) Entries() []LocationEntry {
	out := make([]LocationEntry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Lookup returns metadata for (city, region), case-insensitively
func (g *MemoryGazetteer) Lookup(ctx context.Context, city, region string) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	md, ok := g.byKey[lookupKey(city, region)]
	if !ok {
		return Metadata{}, fmt.Errorf("%s, %s: %w", city, region, ErrNotFound)
	}
	return md, nil
}

// Len returns the number of entries
func (g *MemoryGazetteer) Len() int {
	return len(g.entries)
}

func lookupKey(city, region string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(region))
}
