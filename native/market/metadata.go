package market

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const dataURIPrefix = "data:application/json;base64,"

type metadataDocument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// RenderMetadata produces a self-describing display payload for an asset:
// either the bare content pointer, or a JSON document wrapping name,
// description, and pointer encoded as a base64 data URI.
func RenderMetadata(name, description, contentPointer string, embed bool) (string, error) {
	pointer := strings.TrimSpace(contentPointer)
	if !embed {
		return pointer, nil
	}
	doc := metadataDocument{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Content:     pointer,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(raw), nil
}
