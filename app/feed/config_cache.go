package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConfigCache holds the static feed definitions found in the feeds directory.
type ConfigCache struct {
	feedsDir string
	cache    map[string]*StaticConfig
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*StaticConfig),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		feedID := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(feedID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "feed", feedID, "database", config.DatabaseID)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(feedID string) (*StaticConfig, error) {
	configFile := cc.getConfigFilePath(feedID)
	feedConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	feedConfig.ID = feedID

	if err := cc.validateConfig(feedConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[feedConfig.ID] = feedConfig

	return feedConfig, nil
}

func (cc *ConfigCache) GetConfig(feedID string) (*StaticConfig, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	feedConfig, ok := cc.cache[feedID]
	if !ok {
		return nil, fmt.Errorf("feed config with id '%s' not found", feedID)
	}
	return feedConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*StaticConfig {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*StaticConfig, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*StaticConfig, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var feedConfig StaticConfig
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	feedConfig.Token = os.ExpandEnv(strings.TrimSpace(feedConfig.Token))
	feedConfig.DatabaseID = strings.TrimSpace(feedConfig.DatabaseID)
	feedConfig.Mapping = feedConfig.Mapping.Normalize()

	return &feedConfig, nil
}

func (cc *ConfigCache) validateConfig(feedConfig *StaticConfig) error {
	if feedConfig == nil {
		return fmt.Errorf("feedConfig is nil")
	}

	requiredFields := map[string]string{
		"feed id":      feedConfig.ID,
		"token":        feedConfig.Token,
		"database_id":  feedConfig.DatabaseID,
		"mapping.name": feedConfig.Mapping.Name,
		"mapping.date": feedConfig.Mapping.Date,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if err := ValidateCollectionID(feedConfig.DatabaseID); err != nil {
		return err
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(feedID string) string {
	return filepath.Join(cc.feedsDir, feedID+".yml")
}
