package catalog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"RecipeBox/internal/catalog"
)

func seedRecipes() []catalog.Recipe {
	return []catalog.Recipe{
		{ID: "recipe_NorthIndian_001", Title: "Pav Bhaji", Description: "Mumbai street food", Category: "North Indian", Difficulty: "Medium", Times: 45, Ingredients: []string{"potatoes"}, Steps: []string{"mash"}},
		{ID: "recipe_SouthIndian_006", Title: "Ragi Mudde", Description: "Millet balls", Category: "South Indian", Difficulty: "Easy", Times: 20, Ingredients: []string{"ragi"}, Steps: []string{"stir"}},
		{ID: "recipe_IndianDessert_007", Title: "Carrot Halwa", Description: "Dessert", Category: "North Indian", Difficulty: "Easy", Times: 40, Ingredients: []string{"carrots"}, Steps: []string{"simmer"}},
	}
}

func newCatalogTS(t *testing.T, kv catalog.KV, deps catalog.HTTPDeps) *httptest.Server {
	t.Helper()

	c, err := catalog.Initialize(context.Background(), kv, seedRecipes(), catalog.Options{Log: zap.NewNop()})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if deps.Service == "" {
		deps.Service = "recipebox"
	}
	h := catalog.NewHandler(&catalog.Server{Catalog: c}, deps)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func decodeList(t *testing.T, raw []byte) []catalog.Recipe {
	t.Helper()
	var out []catalog.Recipe
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, string(raw))
	}
	return out
}

func recipeBody() map[string]any {
	return map[string]any{
		"title":       "Masala Dosa",
		"description": "Crisp crepe with potato filling",
		"category":    "South Indian",
		"difficulty":  "Hard",
		"ingredients": "rice\nurad dal\n\npotatoes",
		"steps":       []string{"soak", "grind", "ferment", "cook"},
		"times":       60,
	}
}

func TestHTTP_ListAndFilter(t *testing.T) {
	ts := newCatalogTS(t, catalog.NewMemKV(), catalog.HTTPDeps{})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/recipes", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
	if got := decodeList(t, raw); len(got) != 3 || got[0].ID != "recipe_NorthIndian_001" {
		t.Fatalf("list=%+v", got)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/recipes?q=PAV", nil, nil)
	if got := decodeList(t, raw); resp.StatusCode != http.StatusOK || len(got) != 1 || got[0].Title != "Pav Bhaji" {
		t.Fatalf("search status=%d list=%+v", resp.StatusCode, got)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/recipes?max_time=40&category=North+Indian", nil, nil)
	if got := decodeList(t, raw); resp.StatusCode != http.StatusOK || len(got) != 1 || got[0].Times != 40 {
		t.Fatalf("filter status=%d list=%+v", resp.StatusCode, got)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/recipes?difficulty=Impossible", nil, nil)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("empty result status=%d body=%s", resp.StatusCode, string(raw))
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/recipes?max_time=soon", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad max_time status=%d body=%s", resp.StatusCode, string(raw))
	}
}

func TestHTTP_Facets(t *testing.T) {
	ts := newCatalogTS(t, catalog.NewMemKV(), catalog.HTTPDeps{})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/recipes/facets", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	var f catalog.Facets
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(f.Categories) != 2 || f.Categories[0] != "North Indian" {
		t.Fatalf("facets=%+v", f)
	}
}

func TestHTTP_CreateGetUpdateDelete(t *testing.T) {
	kv := catalog.NewMemKV()
	ts := newCatalogTS(t, kv, catalog.HTTPDeps{})

	var created catalog.Recipe
	{
		resp, raw := doJSON(t, http.MethodPost, ts.URL+"/recipes", recipeBody(), nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status=%d body=%s", resp.StatusCode, string(raw))
		}
		if err := json.Unmarshal(raw, &created); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if created.ID == "" || created.Times != 60 || len(created.Ingredients) != 3 || len(created.Steps) != 4 {
			t.Fatalf("created=%+v", created)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodGet, ts.URL+"/recipes", nil, nil)
		if got := decodeList(t, raw); resp.StatusCode != http.StatusOK || got[0].ID != created.ID {
			t.Fatalf("new recipe should be listed first: %+v", got)
		}
	}

	{
		body := recipeBody()
		body["title"] = "Mysore Masala Dosa"
		body["times"] = "75"

		resp, raw := doJSON(t, http.MethodPut, ts.URL+"/recipes/"+created.ID, body, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("update status=%d body=%s", resp.StatusCode, string(raw))
		}

		resp, raw = doJSON(t, http.MethodGet, ts.URL+"/recipes/"+created.ID, nil, nil)
		var got catalog.Recipe
		if err := json.Unmarshal(raw, &got); err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("get status=%d err=%v body=%s", resp.StatusCode, err, string(raw))
		}
		if got.Title != "Mysore Masala Dosa" || got.Times != 75 || got.ID != created.ID {
			t.Fatalf("got=%+v", got)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodDelete, ts.URL+"/recipes/"+created.ID, nil, nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("delete status=%d body=%s", resp.StatusCode, string(raw))
		}

		resp, _ = doJSON(t, http.MethodGet, ts.URL+"/recipes/"+created.ID, nil, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("get after delete status=%d", resp.StatusCode)
		}

		resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/recipes/"+created.ID, nil, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("second delete status=%d", resp.StatusCode)
		}
	}

	raw, ok, err := kv.Read(context.Background(), catalog.RecipesKey)
	if err != nil || !ok {
		t.Fatalf("read store: ok=%v err=%v", ok, err)
	}
	stored, err := catalog.DecodeRecipes([]byte(raw))
	if err != nil || len(stored) != 3 {
		t.Fatalf("stored=%d err=%v", len(stored), err)
	}
}

func TestHTTP_ValidationErrors(t *testing.T) {
	ts := newCatalogTS(t, catalog.NewMemKV(), catalog.HTTPDeps{})

	body := recipeBody()
	body["times"] = "an hour"

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/recipes", body, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	var er struct {
		Error   string                  `json:"error"`
		Details catalog.ValidationError `json:"details"`
	}
	if err := json.Unmarshal(raw, &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Error != "invalid recipe" || er.Details.Field != "times" {
		t.Fatalf("error=%+v", er)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/recipes", `{"title":`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/recipes", map[string]any{"title": "x", "owner": "me"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/recipes/nope", recipeBody(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("update unknown status=%d", resp.StatusCode)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/recipes", nil, nil)
	if got := decodeList(t, raw); resp.StatusCode != http.StatusOK || len(got) != 3 {
		t.Fatalf("rejected writes changed the catalog: %d", len(got))
	}
}

func TestHTTP_QuotaExceededReportsNotSaved(t *testing.T) {
	seedJSON, err := json.Marshal(seedRecipes())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// room for the seed but not for another recipe
	kv := catalog.Limit(catalog.NewMemKV(), len(seedJSON)+100)
	ts := newCatalogTS(t, kv, catalog.HTTPDeps{})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/recipes", recipeBody(), nil)
	if resp.StatusCode != http.StatusInsufficientStorage {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/recipes", nil, nil)
	if got := decodeList(t, body); resp.StatusCode != http.StatusOK || len(got) != 4 {
		t.Fatalf("optimistic create missing: %d recipes", len(got))
	}
}

func TestHTTP_WriteRateLimit(t *testing.T) {
	ts := newCatalogTS(t, catalog.NewMemKV(), catalog.HTTPDeps{WriteLimitPerMin: 1})

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/recipes", recipeBody(), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first status=%d body=%s", resp.StatusCode, string(raw))
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/recipes", recipeBody(), nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/recipes", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reads must not be limited: status=%d", resp.StatusCode)
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ts := newCatalogTS(t, catalog.NewMemKV(), catalog.HTTPDeps{
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   "scrape",
	})

	for _, p := range []string{"/healthz", "/readyz"} {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+p, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status=%d", p, resp.StatusCode)
		}
	}

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("metrics without token status=%d", resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, map[string]string{"Authorization": "Bearer scrape"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d", resp.StatusCode)
	}
	if !strings.Contains(string(raw), "http_requests_total") {
		t.Fatalf("metrics body missing request counter")
	}
}
