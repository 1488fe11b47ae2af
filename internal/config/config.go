package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultMaxPageSize caps pageSize on listing and search calls.
const DefaultMaxPageSize = 100

// DefaultRetentionDays is how long trashed and spam messages survive before
// the retention sweep removes them.
const DefaultRetentionDays = 30

type Config struct {
	Environment string

	DBHost     string
	DBPort     string
	DBUsername string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// MaxPageSize is the ceiling pageSize is clamped to.
	MaxPageSize int
	// AllIncludesSpamTrash switches the "all" view to include spam and
	// trashed messages. The default mirrors Gmail's All Mail.
	AllIncludesSpamTrash bool
	// ThreadedListing makes folder listings group messages into
	// conversations by default.
	ThreadedListing bool

	// RetentionDays is how long trashed and spam messages are kept before
	// the retention sweep purges them permanently.
	RetentionDays int

	// Outbound relay for sent mail. Delivery failures never roll back the
	// local write, so a missing relay only disables sending.
	SMTPRelayAddr string
	SMTPFrom      string

	Timezone string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("POSTBOX_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:          env,
		DBHost:               getEnvOrDefault("POSTBOX_DB_HOST", "localhost"),
		DBPort:               getEnvOrDefault("POSTBOX_DB_PORT", "5432"),
		DBUsername:           getEnvOrDefault("POSTBOX_DB_USER", "postbox"),
		DBPassword:           os.Getenv("POSTBOX_DB_PASSWORD"),
		DBName:               getEnvOrDefault("POSTBOX_DB_NAME", "postbox"),
		DBSSLMode:            getEnvOrDefault("POSTBOX_DB_SSLMODE", "disable"),
		MaxPageSize:          getEnvIntOrDefault("POSTBOX_MAX_PAGE_SIZE", DefaultMaxPageSize),
		AllIncludesSpamTrash: getEnvBool("POSTBOX_ALL_INCLUDES_SPAM_TRASH"),
		ThreadedListing:      getEnvBoolOrDefault("POSTBOX_THREADED_LISTING", true),
		RetentionDays:        getEnvIntOrDefault("POSTBOX_RETENTION_DAYS", DefaultRetentionDays),
		SMTPRelayAddr:        os.Getenv("POSTBOX_SMTP_RELAY_ADDR"),
		SMTPFrom:             os.Getenv("POSTBOX_SMTP_FROM"),
		Timezone:             getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("POSTBOX_DB_PASSWORD is required")
	}

	if c.MaxPageSize < 1 {
		return fmt.Errorf("POSTBOX_MAX_PAGE_SIZE must be at least 1")
	}

	if c.RetentionDays < 1 {
		return fmt.Errorf("POSTBOX_RETENTION_DAYS must be at least 1")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	// Credentials may contain URL metacharacters, so they are escaped.
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.DBUsername),
		url.QueryEscape(c.DBPassword),
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && parsed
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
