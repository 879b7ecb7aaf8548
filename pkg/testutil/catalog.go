package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"menuboard/internal/menu/models"
)

// CatalogServer is an in-memory catalog service speaking the catalog's HTTP
// API. Fields may be changed between requests through the setters.
type CatalogServer struct {
	*httptest.Server

	mu       sync.Mutex
	names    map[models.CategoryID]string
	items    map[string][]models.Item
	failing  map[string]int
	uploads  map[string][]byte
	settings map[string]map[string]any
}

// NewCatalogServer starts a catalog server that is closed with the test.
func NewCatalogServer(t *testing.T) *CatalogServer {
	t.Helper()
	c := &CatalogServer{
		names:    map[models.CategoryID]string{},
		items:    map[string][]models.Item{},
		failing:  map[string]int{},
		uploads:  map[string][]byte{},
		settings: map[string]map[string]any{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products/category/getname/{id}", c.handleName)
	mux.HandleFunc("GET /api/products/category/{name}", c.handleItems)
	mux.HandleFunc("GET /api/uploads/logo", func(w http.ResponseWriter, _ *http.Request) { c.writeUpload(w, "logo") })
	mux.HandleFunc("GET /api/uploads/images/{key}", func(w http.ResponseWriter, r *http.Request) {
		c.writeUpload(w, r.PathValue("key"))
	})
	mux.HandleFunc("POST /api/utility/get", c.handleSetting)

	c.Server = httptest.NewServer(mux)
	t.Cleanup(c.Close)
	return c
}

func (c *CatalogServer) SetCategory(id models.CategoryID, name string, items ...models.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[id] = name
	c.items[name] = items
}

func (c *CatalogServer) SetItems(name string, items ...models.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[name] = items
}

// FailCategory makes item requests for name answer with status; 0 clears it.
func (c *CatalogServer) FailCategory(name string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status == 0 {
		delete(c.failing, name)
		return
	}
	c.failing[name] = status
}

func (c *CatalogServer) SetUpload(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads[key] = data
}

func (c *CatalogServer) SetSetting(name string, value map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings[name] = value
}

func (c *CatalogServer) handleName(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	name, ok := c.names[models.CategoryID(id)]
	c.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(name))
}

func (c *CatalogServer) handleItems(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	c.mu.Lock()
	status := c.failing[name]
	items, ok := c.items[name]
	c.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, items)
}

func (c *CatalogServer) writeUpload(w http.ResponseWriter, key string) {
	c.mu.Lock()
	data, ok := c.uploads[key]
	c.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write(data)
}

func (c *CatalogServer) handleSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	value, ok := c.settings[req.Name]
	c.mu.Unlock()
	if !ok {
		value = map[string]any{}
	}
	writeJSON(w, value)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
