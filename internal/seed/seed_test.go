package seed

import (
	"testing"

	"go.uber.org/zap"
)

func TestLoad_EmbeddedSeedIsValid(t *testing.T) {
	recipes := Load(zap.NewNop())
	if len(recipes) == 0 {
		t.Fatalf("expected embedded seed recipes")
	}

	seen := map[string]bool{}
	for _, r := range recipes {
		if seen[r.ID] {
			t.Fatalf("duplicate seed id %q", r.ID)
		}
		seen[r.ID] = true

		if r.Title == "" || r.Category == "" || r.Difficulty == "" {
			t.Fatalf("seed %q missing required fields: %+v", r.ID, r)
		}
		if len(r.Ingredients) == 0 || len(r.Steps) == 0 {
			t.Fatalf("seed %q has no ingredients or steps", r.ID)
		}
	}

	if !seen["recipe_NorthIndian_001"] {
		t.Fatalf("expected Pav Bhaji seed recipe")
	}
}

func TestDecode_MalformedSeedYieldsEmptyList(t *testing.T) {
	for _, in := range []string{`{"id":`, `[{"title":"no id"}]`, `"nope"`} {
		got := decode([]byte(in), nil)
		if got == nil || len(got) != 0 {
			t.Fatalf("decode(%q) = %#v, want empty non-nil list", in, got)
		}
	}
}
