package catalog

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Filters is the grid's filter state. Zero values mean no constraint.
type Filters struct {
	Search     string
	Difficulty string
	Category   string
	MaxTime    *int
}

// Query returns the recipes matching every filter, in working-set order.
// The input slice is never modified.
func Query(recipes []Recipe, f Filters) []Recipe {
	fold := cases.Fold()
	needle := fold.String(f.Search)

	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		if f.Difficulty != "" && r.Difficulty != f.Difficulty {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if f.MaxTime != nil && r.Times > *f.MaxTime {
			continue
		}
		if needle != "" && !matchesText(fold, r, needle) {
			continue
		}
		out = append(out, r.clone())
	}
	return out
}

func matchesText(fold cases.Caser, r Recipe, needle string) bool {
	if strings.Contains(fold.String(r.Title), needle) {
		return true
	}
	if strings.Contains(fold.String(r.Description), needle) {
		return true
	}
	for _, ing := range r.Ingredients {
		if strings.Contains(fold.String(ing), needle) {
			return true
		}
	}
	return false
}

// ParseFilters binds q, difficulty, max_time and category query parameters.
func ParseFilters(v url.Values) (Filters, error) {
	f := Filters{
		Search:     v.Get("q"),
		Difficulty: v.Get("difficulty"),
		Category:   v.Get("category"),
	}

	if raw := strings.TrimSpace(v.Get("max_time")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Filters{}, &ValidationError{Field: "max_time", Reason: "must be a whole number of minutes"}
		}
		if n < 0 {
			return Filters{}, &ValidationError{Field: "max_time", Reason: "must not be negative"}
		}
		f.MaxTime = &n
	}

	return f, nil
}

type Facets struct {
	Categories   []string `json:"categories"`
	Difficulties []string `json:"difficulties"`
}

// CollectFacets lists distinct categories and difficulties in first-seen order.
func CollectFacets(recipes []Recipe) Facets {
	f := Facets{Categories: []string{}, Difficulties: []string{}}
	seenCat := map[string]struct{}{}
	seenDiff := map[string]struct{}{}

	for _, r := range recipes {
		if _, ok := seenCat[r.Category]; !ok && r.Category != "" {
			seenCat[r.Category] = struct{}{}
			f.Categories = append(f.Categories, r.Category)
		}
		if _, ok := seenDiff[r.Difficulty]; !ok && r.Difficulty != "" {
			seenDiff[r.Difficulty] = struct{}{}
			f.Difficulties = append(f.Difficulties, r.Difficulty)
		}
	}
	return f
}
