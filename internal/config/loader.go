package config

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Codec serializes a slot's value. It is the strategy the store delegates to for
// the on-disk format.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, target any) error
	Name() string
}

// CodecFor returns the codec matching the file extension of path. Unknown
// extensions fall back to JSON.
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLCodec{}
	case ".toml":
		return TOMLCodec{}
	default:
		return JSONCodec{}
	}
}

// ============================================================================
// CODECS
// ============================================================================

// JSONCodec writes indented JSON.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (JSONCodec) Decode(data []byte, target any) error {
	return sonic.Unmarshal(data, target)
}

func (JSONCodec) Name() string { return "json" }

// YAMLCodec writes YAML with two-space indentation.
type YAMLCodec struct{}

func (YAMLCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (YAMLCodec) Decode(data []byte, target any) error {
	return yaml.Unmarshal(data, target)
}

func (YAMLCodec) Name() string { return "yaml" }

// TOMLCodec writes TOML.
type TOMLCodec struct{}

func (TOMLCodec) Encode(v any) ([]byte, error) {
	return toml.Marshal(v)
}

func (TOMLCodec) Decode(data []byte, target any) error {
	return toml.Unmarshal(data, target)
}

func (TOMLCodec) Name() string { return "toml" }
