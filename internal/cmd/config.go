package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. Values come from an optional YAML
// file; environment variables override the essentials.
type Config struct {
	Server struct {
		Port       string `yaml:"port"`
		AdminToken string `yaml:"admin_token"`
	} `yaml:"server"`
	Storage struct {
		// Backend selects "postgres" or "memory".
		Backend string `yaml:"backend"`
	} `yaml:"storage"`
	Broadcast struct {
		// Backend selects "nats" or "memory".
		Backend       string `yaml:"backend"`
		NATSURL       string `yaml:"nats_url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"broadcast"`
}

func loadConfig(path string) (*Config, error) {
	var config Config
	config.Server.Port = "8080"
	config.Storage.Backend = "postgres"
	config.Broadcast.Backend = "nats"
	config.Broadcast.SubjectPrefix = "auction.events"

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Environment overrides.
	if v := os.Getenv("PORT"); v != "" {
		config.Server.Port = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		config.Server.AdminToken = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = v
	}
	if v := os.Getenv("BROADCAST_BACKEND"); v != "" {
		config.Broadcast.Backend = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		config.Broadcast.NATSURL = v
	}
	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
