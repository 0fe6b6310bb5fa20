package models

import (
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr  string   `yaml:"server_addr"`
	DatabaseURL string   `yaml:"database_url"`
	KafkaBroker string   `yaml:"kafka_broker"`
	KafkaTopic  string   `yaml:"kafka_topic"`
	StoragePath string   `yaml:"storage_path"`
	LogLevel    string   `yaml:"log_level"`
	Thumbnail   ThumbCfg `yaml:"thumbnail"`
	AI          AICfg    `yaml:"ai"`
}

type ThumbCfg struct {
	MaxWidth int `yaml:"max_width"`
	Quality  int `yaml:"quality"`
}

// AICfg configures the Ollama vision-language endpoint. Enabled=false turns
// the tagging client into a no-op.
type AICfg struct {
	OllamaURL string `yaml:"ollama_url"`
	Model     string `yaml:"model"`
	Enabled   bool   `yaml:"enabled"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Thumbnail.MaxWidth <= 0 {
		cfg.Thumbnail.MaxWidth = 400
	}
	if cfg.Thumbnail.Quality <= 0 {
		cfg.Thumbnail.Quality = 85
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("OLLAMA_API_URL"); v != "" {
		cfg.AI.OllamaURL = v
	}
	return &cfg, nil
}
