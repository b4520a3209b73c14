// Package config loads environment variables into a typed Config and applies the
// logging setup shared by every package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit      = 50
	defaultSubscriptionGrace = 5 * time.Second
)

type Config struct {
	// Firebase
	FirebaseProjectID   string
	FirebaseDatabaseURL string
	FirebaseAPIKey      string
	CredentialsFile     string

	// Redis for persisted UI state; empty selects the in-memory store.
	RedisURL string

	// Chat sync
	MessageHistoryLimit int
	SubscriptionGrace   time.Duration
	// MentionEscapeNames quotes regexp metacharacters in display names before
	// building the mention pattern. Off by default.
	MentionEscapeNames bool

	// Expo push
	ExpoAccessToken string

	LogLevel string
}

// Load reads environment variables and applies defaults. Use ValidateFirebase when a
// hosted backend is required.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	cfg.FirebaseDatabaseURL = os.Getenv("FIREBASE_DATABASE_URL")
	if cfg.FirebaseDatabaseURL == "" && cfg.FirebaseProjectID != "" {
		cfg.FirebaseDatabaseURL = "https://" + cfg.FirebaseProjectID + ".firebaseio.com"
	}
	cfg.FirebaseAPIKey = os.Getenv("FIREBASE_API_KEY")
	cfg.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")

	cfg.RedisURL = os.Getenv("REDIS_URL")

	cfg.MessageHistoryLimit = defaultHistoryLimit
	if v := os.Getenv("MESSAGE_HISTORY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MESSAGE_HISTORY_LIMIT %q: must be a positive integer", v)
		}
		cfg.MessageHistoryLimit = n
	}

	cfg.SubscriptionGrace = defaultSubscriptionGrace
	if v := os.Getenv("SUBSCRIPTION_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid SUBSCRIPTION_GRACE %q: %v", v, err)
		}
		cfg.SubscriptionGrace = d
	}

	if v := os.Getenv("MENTION_ESCAPE_NAMES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MENTION_ESCAPE_NAMES %q: %w", v, err)
		}
		cfg.MentionEscapeNames = b
	}

	cfg.ExpoAccessToken = os.Getenv("EXPO_ACCESS_TOKEN")

	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// ValidateFirebase checks the fields needed to reach the hosted store and auth service.
func (c *Config) ValidateFirebase() error {
	if c.FirebaseProjectID == "" || c.FirebaseAPIKey == "" {
		return fmt.Errorf("missing firebase env: require FIREBASE_PROJECT_ID, FIREBASE_API_KEY")
	}
	return nil
}

// ConfigureLogging installs the JSON formatter and level on the global logger.
func ConfigureLogging(level string) {
	log.SetFormatter(&log.JSONFormatter{
		FieldMap: log.FieldMap{log.FieldKeyMsg: "message"},
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
