// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the parsed form of .drift/project.yaml.
type Config struct {
	ProjectID string          `yaml:"project_id"`
	Drift     DriftConfig     `yaml:"drift"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Indexing  IndexingConfig  `yaml:"indexing"`
}

// DriftConfig points at the shared hub, if this project reports to one.
// Both fields are empty for local-only use.
type DriftConfig struct {
	EdgeCache  string `yaml:"edge_cache"`
	PrimaryHub string `yaml:"primary_hub"`
}

// EmbeddingConfig selects the embedding backend used by `drift index`.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // ollama, nomic, mock
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// LLMConfig configures an optional OpenAI-compatible LLM used to narrate
// `drift analyze` findings. Disabled by default.
type LLMConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
}

// IndexingConfig tunes the scan pipeline.
type IndexingConfig struct {
	ParserMode  string   `yaml:"parser_mode"`
	BatchTarget int      `yaml:"batch_target"`
	MaxFileSize int64    `yaml:"max_file_size"`
	Exclude     []string `yaml:"exclude"`
}

const configFileName = "project.yaml"

// ConfigDir returns the .drift directory for the repository at cwd.
func ConfigDir(cwd string) string {
	return filepath.Join(cwd, ".drift")
}

// ConfigPath returns the path to .drift/project.yaml for the repository at cwd.
func ConfigPath(cwd string) string {
	return filepath.Join(ConfigDir(cwd), configFileName)
}

// DefaultConfig returns the configuration written by `drift init` before any
// flags or interactive prompts are applied.
func DefaultConfig(projectID string) *Config {
	return &Config{
		ProjectID: projectID,
		Embedding: EmbeddingConfig{
			Provider: "mock",
		},
		LLM: LLMConfig{
			MaxTokens: 2000,
		},
		Indexing: IndexingConfig{
			ParserMode:  "tree-sitter",
			BatchTarget: 500,
			MaxFileSize: 2 << 20, // 2MiB
		},
	}
}

// LoadConfig reads and parses the project configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("config %s: project_id is required", path)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
