package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file if there is one; real environment variables win.
func LoadEnv() {
	_ = godotenv.Load()
}

func GetString(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func GetBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func GetDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

// secrets never have a default
func GoogleAPIKey() string { return os.Getenv("GOOGLE_API_KEY") }
func GroqAPIKey() string   { return os.Getenv("GROQ_API_KEY") }
func JWTSecret() string    { return os.Getenv("JWT_SECRET") }
func RedisPassword() string {
	return os.Getenv("REDIS_PASSWORD")
}

func SearchAPIKey(provider string) string {
	switch provider {
	case "serper":
		return os.Getenv("SERPER_API_KEY")
	default:
		return os.Getenv("BRAVE_API_KEY")
	}
}

// BlobAllowedHosts lists the hosts remote documents may come from, comma
// separated. A leading dot matches subdomains. Empty disables remote documents.
func BlobAllowedHosts() []string {
	var hosts []string
	for _, h := range strings.Split(os.Getenv("BLOB_ALLOWED_HOSTS"), ",") {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func IsProd() bool {
	return GetBool("IS_PROD", IS_PROD)
}
