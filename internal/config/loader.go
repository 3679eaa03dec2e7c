package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	BundledDir  string `json:"bundled_dir" yaml:"bundled_dir" toml:"bundled_dir"`
	DataDir     string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	StatePath   string `json:"state_path" yaml:"state_path" toml:"state_path"`
	RegistryURL string `json:"registry_url" yaml:"registry_url" toml:"registry_url"`
	OnnxLibPath string `json:"onnx_lib_path" yaml:"onnx_lib_path" toml:"onnx_lib_path"`
	// Checksums maps remote model names to expected SHA-256 hex digests.
	// Models without an entry skip verification.
	Checksums map[string]string `json:"checksums" yaml:"checksums" toml:"checksums"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
