// Package config loads service settings from an optional .env file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

type Config struct {
	ServerPort    string
	MongoURI      string
	MongoDBName   string
	StoreBackend  string
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	CassandraHost string
	CassKeyspace  string
	LogFile       string
	LogLevel      string
	CORSOrigin    string
}

// Load reads envFile when it exists and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "taskgraph"),
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreMongo)),
		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", CacheRedis)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CassandraHost: os.Getenv("CASS_DB"),
		CassKeyspace:  getEnv("CASS_KEYSPACE", "notifications"),
		LogFile:       getEnv("LOG_FILE", "logs/taskgraph.log"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSOrigin:    getEnv("CORS_ORIGIN", "*"),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.CacheTTL, err = time.ParseDuration(getEnv("CACHE_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("invalid CACHE_TTL: must be positive, got %s", cfg.CacheTTL)
	}
	if _, err := strconv.Atoi(cfg.ServerPort); err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT %q: %w", cfg.ServerPort, err)
	}
	if cfg.StoreBackend != StoreMongo && cfg.StoreBackend != StoreMemory {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: expected %s or %s", cfg.StoreBackend, StoreMongo, StoreMemory)
	}
	if cfg.CacheBackend != CacheRedis && cfg.CacheBackend != CacheMemory {
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: expected %s or %s", cfg.CacheBackend, CacheRedis, CacheMemory)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return ":" + c.ServerPort
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
