package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file if one is present. Missing files are fine; real
// deployments set the environment directly.
func Load() {
	godotenv.Load()
}

// GetEnv retrieves an environment variable or returns a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MustGetEnv retrieves an environment variable or panics if not set.
func MustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}

// GetEnvInt retrieves an integer environment variable or returns a default.
func GetEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvDuration retrieves a duration environment variable or returns a
// default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// Server holds the inventory service configuration.
type Server struct {
	HTTPAddr           string
	StorageBackend     string // memory | mysql
	MySQLDSN           string
	NotifierBackend    string // log | kafka
	KafkaBrokers       string
	KafkaTopic         string
	ReserveMaxAttempts int
}

func ServerFromEnv() Server {
	return Server{
		HTTPAddr:           GetEnv("HTTP_ADDR", ":8080"),
		StorageBackend:     GetEnv("STORAGE_BACKEND", "memory"),
		MySQLDSN:           GetEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/stocktrack?parseTime=true"),
		NotifierBackend:    GetEnv("NOTIFIER_BACKEND", "log"),
		KafkaBrokers:       GetEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:         GetEnv("KAFKA_TOPIC", "stock-updates"),
		ReserveMaxAttempts: GetEnvInt("RESERVE_MAX_ATTEMPTS", 3),
	}
}

// Gateway holds the admission gateway configuration.
type Gateway struct {
	HTTPAddr        string
	UpstreamURL     string
	JWTSecret       string
	LimiterBackend  string // memory | redis
	RedisAddr       string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

func GatewayFromEnv() Gateway {
	return Gateway{
		HTTPAddr:        GetEnv("GATEWAY_ADDR", ":8081"),
		UpstreamURL:     GetEnv("UPSTREAM_URL", "http://localhost:8080"),
		JWTSecret:       MustGetEnv("JWT_SECRET"),
		LimiterBackend:  GetEnv("LIMITER_BACKEND", "memory"),
		RedisAddr:       GetEnv("REDIS_ADDR", "localhost:6379"),
		RateLimitMax:    GetEnvInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow: GetEnvDuration("RATE_LIMIT_WINDOW", 10*time.Second),
	}
}
