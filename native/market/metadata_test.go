package market

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
)

func TestRenderMetadataPlainPointer(t *testing.T) {
	out, err := RenderMetadata("Nebula", "first print", " ipfs://nebula ", false)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "ipfs://nebula" {
		t.Fatalf("expected trimmed pointer, got %q", out)
	}
}

func TestRenderMetadataEmbedded(t *testing.T) {
	out, err := RenderMetadata("Nebula", "first print", "ipfs://nebula", true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(out, "data:application/json;base64,") {
		t.Fatalf("missing data URI prefix: %q", out)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out, "data:application/json;base64,"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var doc struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Content     string `json:"content"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Name != "Nebula" || doc.Description != "first print" || doc.Content != "ipfs://nebula" {
		t.Fatalf("document fields wrong: %+v", doc)
	}
}
