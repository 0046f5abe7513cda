package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with optional fields so a file may set only some values.
type fileConfig struct {
	ChunkSize *sizeValue `yaml:"chunk_size"`
	PoolSize  *sizeValue `yaml:"pool_size"`
	PoolCount *int       `yaml:"pool_count"`
}

// sizeValue accepts either a YAML integer or a string such as "2M".
type sizeValue int

func (v *sizeValue) UnmarshalYAML(node *yaml.Node) error {
	var n int
	if err := node.Decode(&n); err == nil {
		*v = sizeValue(n)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	parsed, err := ParseSize(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = sizeValue(parsed)
	return nil
}

// Parse decodes YAML on top of base. Unknown keys are rejected.
func Parse(data []byte, base Config) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c := base
	if fc.ChunkSize != nil {
		c.ChunkSize = int(*fc.ChunkSize)
	}
	if fc.PoolSize != nil {
		c.PoolSize = int(*fc.PoolSize)
	}
	if fc.PoolCount != nil {
		c.PoolCount = *fc.PoolCount
	}
	return c, nil
}

// LoadFile reads a YAML configuration file. Missing keys keep their defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data, Default())
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
