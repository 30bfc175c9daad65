package domain

import (
	"fmt"
	"sort"
)

// SortMode selects the ordering applied by FilterAndSort.
type SortMode string

const (
	SortAlphabetic SortMode = "alphabetic"
	SortVersion    SortMode = "version"
	SortDate       SortMode = "date"
)

// ParseSortMode maps a configuration string to a SortMode. The empty string
// defaults to alphabetic ordering.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(s) {
	case "":
		return SortAlphabetic, nil
	case SortAlphabetic, SortVersion, SortDate:
		return SortMode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown sort mode %q", ErrInvalidInput, s)
	}
}

// FilterAndSort returns the names of the given tags, optionally filtered by a
// glob pattern and ordered according to mode. An empty result is not an
// error.
func FilterAndSort(tags []TagRecord, pattern string, mode SortMode) ([]string, error) {
	if pattern != "" {
		if err := ValidatePattern(pattern); err != nil {
			return nil, err
		}
	}
	retained := make([]TagRecord, 0, len(tags))
	for _, t := range tags {
		if pattern == "" || matchGlob(pattern, t.Name) {
			retained = append(retained, t)
		}
	}
	switch mode {
	case SortAlphabetic:
		sort.Slice(retained, func(i, j int) bool {
			return retained[i].Name < retained[j].Name
		})
	case SortVersion:
		sortByVersion(retained)
	case SortDate:
		sortByDate(retained)
	default:
		return nil, fmt.Errorf("%w: unknown sort mode %q", ErrInvalidInput, mode)
	}
	names := make([]string, len(retained))
	for i, t := range retained {
		names[i] = t.Name
	}
	return names, nil
}

// sortByVersion orders parseable names numerically by (major, minor, patch)
// and places the rest after them in alphabetic order, so v1.10.0 sorts after
// v1.9.0 instead of between v1.1.0 and v1.2.0.
func sortByVersion(tags []TagRecord) {
	parsed := make(map[string]*Version, len(tags))
	for _, t := range tags {
		if v, err := ParseTagVersion(t.Name); err == nil {
			parsed[t.Name] = v
		}
	}
	sort.SliceStable(tags, func(i, j int) bool {
		vi, oki := parsed[tags[i].Name]
		vj, okj := parsed[tags[j].Name]
		switch {
		case oki && okj:
			if c := vi.Compare(vj); c != 0 {
				return c < 0
			}
			return tags[i].Name < tags[j].Name
		case oki:
			return true
		case okj:
			return false
		default:
			return tags[i].Name < tags[j].Name
		}
	})
}

// sortByDate orders tags by creation timestamp ascending. Tags missing a
// timestamp sort first, alphabetically among themselves.
func sortByDate(tags []TagRecord) {
	sort.SliceStable(tags, func(i, j int) bool {
		ti, tj := tags[i].CreatedAt, tags[j].CreatedAt
		if ti.IsZero() || tj.IsZero() {
			if ti.IsZero() && tj.IsZero() {
				return tags[i].Name < tags[j].Name
			}
			return ti.IsZero()
		}
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return tags[i].Name < tags[j].Name
	})
}
