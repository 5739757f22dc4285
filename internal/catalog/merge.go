package catalog

// Merge builds the working set from the seed and the persisted recipes.
//
// Seed entries come first in seed order, followed by persisted-only entries in
// persisted order. When an id appears in both, the persisted variant takes the
// seed's slot. Seed ids listed in deletedSeed are dropped unless persisted
// carries them again.
func Merge(seed, persisted []Recipe, deletedSeed map[string]struct{}) []Recipe {
	out := make([]Recipe, 0, len(seed)+len(persisted))
	pos := make(map[string]int, len(seed)+len(persisted))

	put := func(r Recipe) {
		r = r.clone()
		r.normalize()
		if i, ok := pos[r.ID]; ok {
			out[i] = r
			return
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}

	persistedIDs := make(map[string]struct{}, len(persisted))
	for _, r := range persisted {
		persistedIDs[r.ID] = struct{}{}
	}

	for _, r := range seed {
		if _, gone := deletedSeed[r.ID]; gone {
			if _, back := persistedIDs[r.ID]; !back {
				continue
			}
		}
		put(r)
	}
	for _, r := range persisted {
		put(r)
	}

	return out
}
