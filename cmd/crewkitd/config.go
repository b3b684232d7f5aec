package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fernandezvara/crewkit"
)

// Config holds crewkitd settings read from the environment.
type Config struct {
	HTTPAddr       string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	MemberCacheTTL time.Duration
	JWTSecret      string
	JWTIssuer      string
	Environment    string
	AutoMigrate    bool
	SeedFile       string
}

// Load reads the configuration. An empty DATABASE_URL selects the in-memory
// store and an empty REDIS_ADDR disables the member cache.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTIssuer:     getEnv("JWT_ISSUER", "crewkit"),
		Environment:   getEnv("APP_ENV", "development"),
		SeedFile:      os.Getenv("SEED_FILE"),
	}

	ttl, err := time.ParseDuration(getEnv("MEMBER_CACHE_TTL", crewkit.DefaultMemberCacheTTL.String()))
	if err != nil {
		return Config{}, fmt.Errorf("MEMBER_CACHE_TTL: %w", err)
	}
	cfg.MemberCacheTTL = ttl

	cfg.AutoMigrate, err = strconv.ParseBool(getEnv("AUTO_MIGRATE", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("AUTO_MIGRATE: %w", err)
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
