//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func waitReady(t *testing.T) {
	t.Helper()
	url := fmt.Sprintf("%s/healthz", baseURL())
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("service not ready")
}

type document struct {
	Version    string           `json:"version"`
	Generated  string           `json:"generated"`
	ItemCount  int              `json:"item_count"`
	GlassItems []map[string]any `json:"glassitems"`
}

func getDocument(t *testing.T, query string) document {
	t.Helper()
	resp, err := http.Get(baseURL() + "/glassitems" + query)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var doc document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestIntegration_OpenAPIServed(t *testing.T) {
	waitReady(t)
	resp, err := http.Get(baseURL() + "/openapi.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestIntegration_DocsServed(t *testing.T) {
	waitReady(t)
	resp, err := http.Get(baseURL() + "/docs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	buf := make([]byte, 1024)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs page")
	}
}

func TestIntegration_GlassItemsShape(t *testing.T) {
	waitReady(t)
	doc := getDocument(t, "")
	if doc.Version == "" || doc.Generated == "" {
		t.Fatalf("missing version or generated: %+v", doc)
	}
	if doc.ItemCount != len(doc.GlassItems) {
		t.Fatalf("item_count %d != %d items", doc.ItemCount, len(doc.GlassItems))
	}
	for _, it := range doc.GlassItems {
		if it["status"] == "discontinued" {
			t.Fatalf("discontinued item without include_discontinued: %v", it)
		}
		if tags, ok := it["tags"].([]any); ok {
			for _, tag := range tags {
				if tag == "unknown" || tag == "" {
					t.Fatalf("placeholder tag exported: %v", it)
				}
			}
		}
	}
}

func TestIntegration_StripMetadata(t *testing.T) {
	waitReady(t)
	doc := getDocument(t, "?strip_metadata=true&include_discontinued=true")
	for _, it := range doc.GlassItems {
		for _, k := range []string{"status", "added_date", "last_seen", "discontinued_date"} {
			if _, ok := it[k]; ok {
				t.Fatalf("%s present in stripped item %v", k, it)
			}
		}
	}
}

func TestIntegration_ItemLookupsAgree(t *testing.T) {
	waitReady(t)
	doc := getDocument(t, "")
	for _, it := range doc.GlassItems {
		id, _ := it["stable_id"].(string)
		if id == "" {
			continue
		}
		resp, err := http.Get(baseURL() + "/items/" + id)
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]any
		err = json.NewDecoder(resp.Body).Decode(&got)
		_ = resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if got["manufacturer"] != it["manufacturer"] || got["code"] != it["code"] {
			t.Fatalf("item %s resolved to %v, want %v", id, got, it)
		}

		key := fmt.Sprintf("%s:%s", it["manufacturer"], it["code"])
		resp, err = http.Get(baseURL() + "/products/" + key)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("product %s: expected 200, got %d", key, resp.StatusCode)
		}
		return
	}
	t.Skip("no item with a stable id in the served database")
}
