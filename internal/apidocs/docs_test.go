package apidocs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestDocRegisteredAndValidJSON(t *testing.T) {
	raw, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}
	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("doc is not JSON: %v", err)
	}
	if doc.Info.Title != "inferd API" {
		t.Fatalf("title=%q", doc.Info.Title)
	}
	for _, p := range []string{"/models", "/models/{id}/load", "/models/{id}/predict", "/models/{id}/batch", "/status"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("missing path %s", p)
		}
	}
}
