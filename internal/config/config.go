package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	DBPath  string
	Workers int

	// CrumbResetInterval is how long a scraped cookie/crumb pair is reused
	// before the next request triggers a refresh, in minutes.
	CrumbResetInterval int
}

func Load() Config {
	// Optional .env file; plain environment variables win.
	_ = godotenv.Load()

	return Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "prices.db"),
		Workers:            getEnvInt("WORKERS", 5),
		CrumbResetInterval: getEnvInt("CRUMB_RESET_INTERVAL", 5),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
