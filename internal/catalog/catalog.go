package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxIDAttempts = 8

type Options struct {
	Log     *zap.Logger
	Metrics *Metrics

	// NewID mints recipe ids. Defaults to "r_" followed by a UUIDv7.
	NewID func() (string, error)
}

// Catalog owns the working set for one session. All methods are safe for
// concurrent use; mutations are flushed to the store before they return.
type Catalog struct {
	mu sync.RWMutex

	store   KV
	log     *zap.Logger
	metrics *Metrics
	newID   func() (string, error)

	recipes     []Recipe
	seedIDs     map[string]struct{}
	deletedSeed map[string]struct{}

	// loadErr is set when the store could not be read at startup. Flushing
	// would overwrite data this session never saw, so writes stay in memory.
	loadErr error
}

// Initialize merges seed with whatever the store holds from earlier sessions
// and writes the merged set back. The returned catalog is always usable; a
// non-nil error wraps ErrNotDurable and means the initial flush failed or was
// skipped because the store could not be read.
func Initialize(ctx context.Context, store KV, seed []Recipe, opts Options) (*Catalog, error) {
	c := &Catalog{
		store:       store,
		log:         opts.Log,
		metrics:     opts.Metrics,
		newID:       opts.NewID,
		seedIDs:     make(map[string]struct{}, len(seed)),
		deletedSeed: map[string]struct{}{},
	}
	if c.store == nil {
		c.store = NewMemKV()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.newID == nil {
		c.newID = newRecipeID
	}

	for _, r := range seed {
		c.seedIDs[r.ID] = struct{}{}
	}

	persisted, perr := c.loadPersisted(ctx)
	deleted, derr := c.loadDeletedSeed(ctx)
	c.deletedSeed = deleted
	c.loadErr = errors.Join(perr, derr)
	c.recipes = Merge(seed, persisted, c.deletedSeed)

	c.log.Info("catalog initialized",
		zap.Int("seed", len(seed)),
		zap.Int("persisted", len(persisted)),
		zap.Int("deleted_seed", len(c.deletedSeed)),
		zap.Int("working_set", len(c.recipes)),
	)

	if c.loadErr != nil {
		c.log.Error("store unreadable, skipping initial flush", zap.Error(c.loadErr))
		c.metrics.observe("", len(c.recipes), c.loadErr)
		return c, fmt.Errorf("%w: %w", ErrNotDurable, c.loadErr)
	}

	err := c.flush(ctx)
	c.metrics.observe("", len(c.recipes), err)
	return c, err
}

// loadPersisted returns an error only when the store itself failed. Missing or
// malformed data falls back to the seed.
func (c *Catalog) loadPersisted(ctx context.Context) ([]Recipe, error) {
	raw, ok, err := c.store.Read(ctx, RecipesKey)
	if err != nil {
		c.log.Warn("read persisted recipes failed, using seed only", zap.Error(err))
		return nil, fmt.Errorf("read %s: %w", RecipesKey, err)
	}
	if !ok {
		return nil, nil
	}

	recipes, err := DecodeRecipes([]byte(raw))
	if err != nil {
		c.log.Warn("persisted recipes malformed, using seed only", zap.Error(err))
		return nil, nil
	}
	return recipes, nil
}

func (c *Catalog) loadDeletedSeed(ctx context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}

	raw, ok, err := c.store.Read(ctx, DeletedSeedKey)
	if err != nil {
		c.log.Warn("read deleted seed ids failed", zap.Error(err))
		return out, fmt.Errorf("read %s: %w", DeletedSeedKey, err)
	}
	if !ok {
		return out, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		c.log.Warn("deleted seed ids malformed, ignoring", zap.Error(err))
		return out, nil
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// flush writes the working set and the seed tombstones. Callers hold c.mu.
func (c *Catalog) flush(ctx context.Context) error {
	if c.loadErr != nil {
		c.log.Warn("store was unreadable at startup, change kept in memory only", zap.Error(c.loadErr))
		return fmt.Errorf("%w: %w", ErrNotDurable, c.loadErr)
	}

	raw, err := encodeRecipes(c.recipes)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrNotDurable, err)
	}
	if err := c.store.Write(ctx, RecipesKey, raw); err != nil {
		c.log.Error("flush recipes failed", zap.Error(err), zap.Int("recipes", len(c.recipes)))
		return fmt.Errorf("%w: %w", ErrNotDurable, err)
	}

	ids := make([]string, 0, len(c.deletedSeed))
	for id := range c.deletedSeed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrNotDurable, err)
	}
	if err := c.store.Write(ctx, DeletedSeedKey, string(b)); err != nil {
		c.log.Error("flush deleted seed ids failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrNotDurable, err)
	}
	return nil
}

func (c *Catalog) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *Catalog) List() []Recipe {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Recipe, len(c.recipes))
	for i, r := range c.recipes {
		out[i] = r.clone()
	}
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.recipes)
}

func (c *Catalog) Get(id string) (Recipe, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexOf(id)
	if i < 0 {
		return Recipe{}, false
	}
	return c.recipes[i].clone(), true
}

func (c *Catalog) Query(f Filters) []Recipe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Query(c.recipes, f)
}

func (c *Catalog) Facets() Facets {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CollectFacets(c.recipes)
}

// Create validates in, assigns a fresh id and puts the recipe at the front of
// the working set. An error wrapping ErrNotDurable means the recipe was added
// in memory but not saved.
func (c *Catalog) Create(ctx context.Context, in Input) (Recipe, error) {
	r, err := in.Validate()
	if err != nil {
		return Recipe{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.uniqueID()
	if err != nil {
		return Recipe{}, err
	}
	r.ID = id

	c.recipes = append([]Recipe{r}, c.recipes...)
	c.log.Info("recipe created", zap.String("id", r.ID), zap.String("title", r.Title))

	err = c.flush(ctx)
	c.metrics.observe("create", len(c.recipes), err)
	return r.clone(), err
}

// Update replaces the editable fields of an existing recipe, keeping its id
// and position.
func (c *Catalog) Update(ctx context.Context, id string, in Input) (Recipe, error) {
	r, err := in.Validate()
	if err != nil {
		return Recipe{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return Recipe{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.ID = id
	c.recipes[i] = r
	c.log.Info("recipe updated", zap.String("id", id))

	err = c.flush(ctx)
	c.metrics.observe("update", len(c.recipes), err)
	return r.clone(), err
}

// Delete removes exactly the recipe with the given id. Deleting a seed recipe
// records a tombstone so later sessions do not bring it back.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	c.recipes = append(c.recipes[:i:i], c.recipes[i+1:]...)
	if _, ok := c.seedIDs[id]; ok {
		c.deletedSeed[id] = struct{}{}
	}
	c.log.Info("recipe deleted", zap.String("id", id))

	err := c.flush(ctx)
	c.metrics.observe("delete", len(c.recipes), err)
	return err
}

func (c *Catalog) indexOf(id string) int {
	for i := range c.recipes {
		if c.recipes[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) uniqueID() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := c.newID()
		if err != nil {
			return "", fmt.Errorf("mint recipe id: %w", err)
		}
		if id != "" && c.indexOf(id) < 0 {
			if _, gone := c.deletedSeed[id]; !gone {
				return id, nil
			}
		}
	}
	return "", errors.New("mint recipe id: no unique id after retries")
}

func newRecipeID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return "r_" + u.String(), nil
}
