// Package config provides centralized default values for Form Relay
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Database Configuration
	SQLitePath    string
	TursoEnabled  bool
	TursoDatabase string
	TursoToken    string

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int

	// Channel Configuration
	ChannelSendBuffer          int
	ChannelWriteTimeoutSeconds int
	ChannelPongTimeoutSeconds  int
	SessionTickerSeconds       int

	// Approval Gate Configuration
	ApprovalTimeoutSeconds int
	EnableSelfDecision     bool

	// Bulk Export Configuration
	BulkExportHardMax int

	// Housekeeping
	ReapInactiveDays    int
	ReapIntervalMinutes int

	// Observer Console
	ObserverPassword     string
	ObserverPasswordHash string
	JWTSecret            string
	ObserverTokenHours   int

	// Notification Email
	NotifyEmail string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Database Configuration
	SQLitePath = getEnvString("SQLITE_PATH", "db/formrelay.db")
	TursoEnabled = getEnvBool("TURSO_ENABLED", false)
	TursoDatabase = getEnvString("TURSO_DATABASE_URL", "")
	TursoToken = getEnvString("TURSO_AUTH_TOKEN", "")

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)

	// Channel Configuration
	ChannelSendBuffer = getEnvInt("CHANNEL_SEND_BUFFER", 64)
	ChannelWriteTimeoutSeconds = getEnvInt("CHANNEL_WRITE_TIMEOUT_SECONDS", 10)
	ChannelPongTimeoutSeconds = getEnvInt("CHANNEL_PONG_TIMEOUT_SECONDS", 60)
	SessionTickerSeconds = getEnvInt("SESSION_TICKER_SECONDS", 20)

	// Approval Gate Configuration
	ApprovalTimeoutSeconds = getEnvInt("APPROVAL_TIMEOUT_SECONDS", 120)
	EnableSelfDecision = getEnvBool("ENABLE_SELF_DECISION", false)

	// Bulk Export Configuration
	BulkExportHardMax = getEnvInt("BULK_EXPORT_HARD_MAX", 50000)

	// Housekeeping
	ReapInactiveDays = getEnvInt("REAP_INACTIVE_DAYS", 30)
	ReapIntervalMinutes = getEnvInt("REAP_INTERVAL_MINUTES", 60)

	// Observer Console
	ObserverPassword = getEnvString("OBSERVER_PASSWORD", "")
	ObserverPasswordHash = getEnvString("OBSERVER_PASSWORD_HASH", "")
	JWTSecret = getEnvString("JWT_SECRET", "")
	ObserverTokenHours = getEnvInt("OBSERVER_TOKEN_HOURS", 12)

	// Notification Email
	NotifyEmail = getEnvString("NOTIFY_EMAIL", "")
}
