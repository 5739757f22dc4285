package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrNotFound      = errors.New("recipe not found")
	ErrValidation    = errors.New("invalid recipe")
	ErrMalformed     = errors.New("malformed recipe data")
	ErrNotDurable    = errors.New("recipes not saved")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

type Recipe struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Times       int      `json:"times"`
	Difficulty  string   `json:"difficulty"`
	Image       string   `json:"image,omitempty"`
}

func (r Recipe) clone() Recipe {
	r.Ingredients = slices.Clone(r.Ingredients)
	r.Steps = slices.Clone(r.Steps)
	return r
}

func (r *Recipe) normalize() {
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Steps == nil {
		r.Steps = []string{}
	}
}

// DecodeRecipes parses a JSON array of recipes. Blank or null input decodes to
// an empty list.
func DecodeRecipes(raw []byte) ([]Recipe, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Recipe{}, nil
	}

	var out []Recipe
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for i := range out {
		if strings.TrimSpace(out[i].ID) == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrMalformed, i)
		}
		if out[i].Times < 0 {
			return nil, fmt.Errorf("%w: entry %d (%s) has negative times", ErrMalformed, i, out[i].ID)
		}
		out[i].normalize()
	}
	return out, nil
}

func encodeRecipes(recipes []Recipe) (string, error) {
	if recipes == nil {
		recipes = []Recipe{}
	}
	b, err := json.Marshal(recipes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Input holds the editable fields of a recipe as submitted by a form.
type Input struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Difficulty  string   `json:"difficulty"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Times       string   `json:"times"`
	Image       string   `json:"image"`
}

// Validate checks every required field and returns the recipe fields without
// an id.
func (in Input) Validate() (Recipe, error) {
	r := Recipe{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Difficulty:  strings.TrimSpace(in.Difficulty),
		Ingredients: SplitLines(in.Ingredients...),
		Steps:       SplitLines(in.Steps...),
		Image:       strings.TrimSpace(in.Image),
	}

	required := []struct {
		field string
		empty bool
	}{
		{"title", r.Title == ""},
		{"description", r.Description == ""},
		{"category", r.Category == ""},
		{"ingredients", len(r.Ingredients) == 0},
		{"steps", len(r.Steps) == 0},
		{"times", strings.TrimSpace(in.Times) == ""},
		{"difficulty", r.Difficulty == ""},
	}
	for _, f := range required {
		if f.empty {
			return Recipe{}, &ValidationError{Field: f.field, Reason: "required"}
		}
	}

	times, err := strconv.Atoi(strings.TrimSpace(in.Times))
	if err != nil {
		return Recipe{}, &ValidationError{Field: "times", Reason: "must be a whole number of minutes"}
	}
	if times < 0 {
		return Recipe{}, &ValidationError{Field: "times", Reason: "must not be negative"}
	}
	r.Times = times

	return r, nil
}

// SplitLines flattens multi-line values into trimmed, non-blank lines.
func SplitLines(values ...string) []string {
	out := []string{}
	for _, v := range values {
		for _, line := range strings.Split(v, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}
