package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration. Values come from an optional YAML file
// with environment variables taking precedence.
type Config struct {
	Port string `yaml:"port"`

	Store struct {
		// Backend is one of "memory", "postgres", "valkey".
		Backend       string `yaml:"backend"`
		ValkeyAddress string `yaml:"valkey_address"`
	} `yaml:"store"`

	Room struct {
		GraceMinutes        int `yaml:"grace_minutes"`
		AutoAdvanceDelaySec int `yaml:"auto_advance_delay_sec"`
		SweepIntervalSec    int `yaml:"sweep_interval_sec"`
	} `yaml:"room"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func databaseConfigFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "stagetimer"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the YAML config file if it exists, then applies
// environment overrides and defaults.
func loadConfig(path string) (*Config, error) {
	var config Config

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.Port = getEnv("PORT", defaultString(config.Port, "8080"))
	config.Store.Backend = getEnv("STORE_BACKEND", defaultString(config.Store.Backend, "memory"))
	config.Store.ValkeyAddress = getEnv("VALKEY_ADDRESS", defaultString(config.Store.ValkeyAddress, "127.0.0.1:6379"))
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", defaultString(config.NATS.SubjectPrefix, "stagetimer.rooms"))

	config.Room.GraceMinutes = getEnvAsInt("ROOM_GRACE_MINUTES", defaultInt(config.Room.GraceMinutes, 10))
	config.Room.AutoAdvanceDelaySec = getEnvAsInt("AUTO_ADVANCE_DELAY_SEC", defaultInt(config.Room.AutoAdvanceDelaySec, 2))
	config.Room.SweepIntervalSec = getEnvAsInt("ROOM_SWEEP_INTERVAL_SEC", defaultInt(config.Room.SweepIntervalSec, 30))

	return &config, nil
}

func (c *Config) grace() time.Duration {
	return time.Duration(c.Room.GraceMinutes) * time.Minute
}

func (c *Config) autoAdvanceDelay() time.Duration {
	return time.Duration(c.Room.AutoAdvanceDelaySec) * time.Second
}

func (c *Config) sweepInterval() time.Duration {
	return time.Duration(c.Room.SweepIntervalSec) * time.Second
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func defaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}
