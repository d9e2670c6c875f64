package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadPayload reads a training config or transform policy document. The
// contents are passed to the job service unexamined. An empty path yields an
// empty payload.
func LoadPayload(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}

	out := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	case ".toml":
		_, err = toml.Decode(string(data), &out)
	case ".json":
		err = json.Unmarshal(data, &out)
	default:
		return nil, fmt.Errorf("unsupported payload format %q (use .yaml, .yml, .toml or .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse payload %s: %w", path, err)
	}
	return out, nil
}

// PayloadCache loads each payload file once.
type PayloadCache struct {
	loaded map[string]map[string]any
}

// NewPayloadCache creates an empty cache.
func NewPayloadCache() *PayloadCache {
	return &PayloadCache{loaded: make(map[string]map[string]any)}
}

// Load returns the payload at path, reading it on first use.
func (c *PayloadCache) Load(path string) (map[string]any, error) {
	if p, ok := c.loaded[path]; ok {
		return p, nil
	}
	p, err := LoadPayload(path)
	if err != nil {
		return nil, err
	}
	c.loaded[path] = p
	return p, nil
}
