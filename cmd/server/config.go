package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the server configuration read from the environment.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	JWTSecret       string
	JWTAccessTTL    time.Duration
	DBMaxConns      int
	DBMinConns      int
	DBStmtTimeout   time.Duration
	DBTxAttempts    int
	LogLevel        string
	AppEnv          string
	SaleMonths      int
	SalePolicy      string
	IdempotencyTTL  time.Duration
	ShutdownTimeout time.Duration
}

// Development reports whether the development log encoder should be used.
func (c Config) Development() bool {
	return c.AppEnv == "development"
}

// loadConfig reads an optional .env file and then the process environment.
func loadConfig() Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return Config{
		DatabaseURL:     mustEnv("DATABASE_URL"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:       mustEnv("JWT_SECRET"),
		JWTAccessTTL:    getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		DBMaxConns:      getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:      getEnvInt("DB_MIN_CONNS", 2),
		DBStmtTimeout:   getEnvDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
		DBTxAttempts:    getEnvInt("DB_TX_ATTEMPTS", 3),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AppEnv:          getEnv("APP_ENV", "development"),
		SaleMonths:      getEnvInt("SALE_MONTHS", 18),
		SalePolicy:      getEnv("SALE_POLICY", ""),
		IdempotencyTTL:  getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
