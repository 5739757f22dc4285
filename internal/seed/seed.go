// Package seed embeds the default recipes shipped with each build.
package seed

import (
	_ "embed"

	"go.uber.org/zap"

	"RecipeBox/internal/catalog"
)

//go:embed recipes.json
var raw []byte

// Load decodes the embedded recipes. A broken seed file yields an empty list
// so startup can continue with whatever the store holds.
func Load(log *zap.Logger) []catalog.Recipe {
	return decode(raw, log)
}

func decode(b []byte, log *zap.Logger) []catalog.Recipe {
	if log == nil {
		log = zap.NewNop()
	}

	recipes, err := catalog.DecodeRecipes(b)
	if err != nil {
		log.Error("seed recipes malformed, starting without defaults", zap.Error(err))
		return []catalog.Recipe{}
	}
	return recipes
}
