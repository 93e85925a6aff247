package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Chat        ChatConfig                `json:"chat"`
	DocStore    DocStoreConfig            `json:"docstore"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// ChatConfig holds the conversation-pipeline settings. BatchSize counts
// message pairs; the memory layer doubles it into a message budget.
type ChatConfig struct {
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	BatchSize       int    `json:"batch_size"`
	CacheMinutes    int    `json:"cache_minutes"`
	TopK            int    `json:"top_k"`
	DefaultLanguage string `json:"default_language"`
}

type DocStoreConfig struct {
	PersistDir       string `json:"persist_dir"`
	EmbeddingBaseURL string `json:"embedding_base_url"`
	EmbeddingModel   string `json:"embedding_model"`
	EmbeddingAPIKey  string `json:"embedding_api_key"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()

	// sqlite DSNs are file paths; resolve them against the config location
	// so the service can be started from anywhere.
	for name, db := range cfg.Databases {
		if !strings.HasPrefix(name, "sqlite") || db.DSN == "" {
			continue
		}
		if strings.HasPrefix(db.DSN, ":memory:") || strings.HasPrefix(db.DSN, "file:") {
			continue
		}
		if !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}

	if cfg.DocStore.PersistDir != "" && !filepath.IsAbs(cfg.DocStore.PersistDir) {
		cfg.DocStore.PersistDir = filepath.Join(filepath.Dir(absPath), cfg.DocStore.PersistDir)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Chat.BatchSize <= 0 {
		c.Chat.BatchSize = 2
	}
	if c.Chat.CacheMinutes <= 0 {
		c.Chat.CacheMinutes = 2
	}
	if c.Chat.TopK <= 0 {
		c.Chat.TopK = 3
	}
	if c.Chat.DefaultLanguage == "" {
		c.Chat.DefaultLanguage = "en"
	}
	if c.DocStore.PersistDir == "" {
		c.DocStore.PersistDir = "./data/docstore"
	}
}
